package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		fallback string
		want     string
	}{
		{"plain", "42", "receipt", "42"},
		{"receipt id", "A000042/2025", "receipt", "A000042_2025"},
		{"runs collapse", "  Tan  Ah--Kow ", "patient", "Tan_Ah_Kow"},
		{"empty uses fallback", "///", "receipt", "receipt"},
		{"capped", strings.Repeat("a", 100), "x", strings.Repeat("a", MaxSlugLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in, tt.fallback))
		})
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Scaling\tfull mouth\n", SanitizeString("Sca\x00ling\tfull\x07 mouth\n"))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("front.desk@clinic.my"))
	assert.Error(t, ValidateEmail("front desk@clinic"))
}
