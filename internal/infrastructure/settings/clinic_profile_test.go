package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/domain/entity"
)

func TestLoadClinicProfile_ConfiguredLogo(t *testing.T) {
	base := t.TempDir()
	p := NewClinicProfileProvider(entity.ClinicProfile{Name: "Klinik Sentosa", LogoPath: "branding/logo.png"}, base, zap.NewNop())

	profile, err := p.LoadClinicProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Klinik Sentosa", profile.Name)
	assert.Equal(t, filepath.Join(base, "branding", "logo.png"), profile.LogoPath)
}

func TestLoadClinicProfile_AbsoluteLogoUntouched(t *testing.T) {
	p := NewClinicProfileProvider(entity.ClinicProfile{LogoPath: "/srv/logo.png"}, t.TempDir(), zap.NewNop())

	profile, err := p.LoadClinicProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/srv/logo.png", profile.LogoPath)
}

func TestLoadClinicProfile_FallbackLogo(t *testing.T) {
	base := t.TempDir()
	p := NewClinicProfileProvider(entity.ClinicProfile{Name: "Klinik Sentosa"}, base, zap.NewNop())

	profile, err := p.LoadClinicProfile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, profile.LogoPath)

	require.NoError(t, os.MkdirAll(filepath.Join(base, "assets"), 0755))
	jpg := filepath.Join(base, "assets", "clinic_logo.jpg")
	require.NoError(t, os.WriteFile(jpg, []byte("jpg"), 0644))

	profile, err = p.LoadClinicProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, jpg, profile.LogoPath)
}

func TestLoadClinicProfile_ReturnsCopy(t *testing.T) {
	p := NewClinicProfileProvider(entity.ClinicProfile{Name: "Klinik Sentosa"}, "", zap.NewNop())

	first, err := p.LoadClinicProfile(context.Background())
	require.NoError(t, err)
	first.Name = "changed"

	second, err := p.LoadClinicProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Klinik Sentosa", second.Name)
}
