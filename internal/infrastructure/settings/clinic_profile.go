// Package settings supplies the clinic identity printed on receipts.
package settings

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/garyjia/clinic-receipts/internal/application/port"
	"github.com/garyjia/clinic-receipts/internal/domain/entity"
)

// fallback logo names searched under assets/ when none is configured
var logoCandidates = []string{"clinic_logo.png", "clinic_logo.jpg", "clinic_logo.jpeg"}

// ClinicProfileProvider serves a profile loaded from configuration
type ClinicProfileProvider struct {
	profile entity.ClinicProfile
	baseDir string
	logger  *zap.Logger
}

// NewClinicProfileProvider creates a provider for profile. A relative logo path is
// resolved against baseDir.
func NewClinicProfileProvider(profile entity.ClinicProfile, baseDir string, logger *zap.Logger) *ClinicProfileProvider {
	return &ClinicProfileProvider{profile: profile, baseDir: baseDir, logger: logger}
}

// LoadClinicProfile returns a copy of the configured profile.
// A configured logo is passed through even when missing so rendering can report it.
func (p *ClinicProfileProvider) LoadClinicProfile(ctx context.Context) (*entity.ClinicProfile, error) {
	profile := p.profile
	profile.LogoPath = p.resolveLogo(profile.LogoPath)
	return &profile, nil
}

func (p *ClinicProfileProvider) resolveLogo(configured string) string {
	if configured != "" {
		if filepath.IsAbs(configured) || p.baseDir == "" {
			return configured
		}
		return filepath.Join(p.baseDir, configured)
	}

	if p.baseDir == "" {
		return ""
	}
	for _, name := range logoCandidates {
		candidate := filepath.Join(p.baseDir, "assets", name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			p.logger.Debug("Using fallback clinic logo", zap.String("path", candidate))
			return candidate
		}
	}
	return ""
}

var _ port.ClinicProfileProvider = (*ClinicProfileProvider)(nil)
