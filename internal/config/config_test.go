package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "clinic:\n  name: Klinik Sentosa\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, filepath.Join(dir, "data", "clinic.db"), cfg.Database.Path)
	assert.Equal(t, dir, cfg.Receipt.StorageRoot)
	assert.Equal(t, DefaultOutputDir, cfg.Receipt.OutputDir)
	assert.Equal(t, "RM", cfg.Receipt.Currency)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())

	policy := cfg.Policy()
	assert.True(t, policy.SettleEpsilon.Equal(decimal.New(1, -2)))
	assert.False(t, policy.AllowNegativeDiscount)
	assert.False(t, policy.BlockOverpayment)
	assert.Equal(t, time.UTC, policy.Location)
}

func TestLoad_ReceiptSection(t *testing.T) {
	path := writeConfig(t, `
clinic:
  name: "  Klinik Sentosa "
  logo_path: assets/logo.png
receipt:
  output_dir: ./out/../pdf/
  settle_epsilon: "0.05"
  block_overpayment: true
  receipt_prefix: B
  timezone: Asia/Kuala_Lumpur
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pdf", cfg.Receipt.OutputDir)
	assert.Equal(t, "B", cfg.Receipt.Prefix)
	assert.True(t, cfg.Policy().BlockOverpayment)
	assert.True(t, cfg.Policy().SettleEpsilon.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, "Asia/Kuala_Lumpur", cfg.Location().String())
	issued := time.Date(2025, 10, 15, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-10-16", cfg.Policy().Local(issued).Format("2006-01-02"))

	profile := cfg.ClinicProfile()
	assert.Equal(t, "Klinik Sentosa", profile.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "assets", "logo.png"), profile.LogoPath)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CLINIC_NAME", "Env Clinic")
	path := writeConfig(t, "clinic:\n  name: File Clinic\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Env Clinic", cfg.Clinic.Name)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "database:\n  driver: postgres\n"},
		{"mysql without dsn", "database:\n  driver: mysql\n"},
		{"bad epsilon", "receipt:\n  settle_epsilon: abc\n"},
		{"negative epsilon", "receipt:\n  settle_epsilon: \"-0.01\"\n"},
		{"prefix with slash", "receipt:\n  receipt_prefix: A/\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"bad clinic email", "clinic:\n  email: not-an-email\n"},
		{"unknown timezone", "receipt:\n  timezone: Mars/Olympus\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNormaliseOutputDir(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"empty", "", "receipts"},
		{"blank", "   ", "receipts"},
		{"dot", ".", "receipts"},
		{"plain", "pdf", "pdf"},
		{"nested", "pdf/2025", "pdf/2025"},
		{"dot segments", "./a/./b/", "a/b"},
		{"parent popped", "a/../b", "b"},
		{"escaping", "../../..", "receipts"},
		{"absolute inside root", filepath.Join(root, "docs", "out"), "docs/out"},
		{"absolute outside root", "/var/tmp/other", "other"},
		{"filesystem root", "/", "receipts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormaliseOutputDir(tt.value, root))
		})
	}
}
