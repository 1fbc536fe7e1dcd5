package vat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rezonia/ledger-bridge/internal/vat"
)

func TestValidateOrgNumber(t *testing.T) {
	tests := []struct {
		name      string
		orgNumber string
		valid     bool
	}{
		{"valid with dash", "556677-8899", true},
		{"valid without dash", "5566778899", true},
		{"wrong check digit", "556677-8890", false},
		{"too short", "556677-889", false},
		{"too long", "556677-88991", false},
		{"empty", "", false},
		{"letters", "ABCDEF-GHIJ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vat.ValidateOrgNumber(tt.orgNumber)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
