package domain

import (
	"errors"
	"testing"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Category
		wantErr error
	}{
		{"known category", "food", CategoryFood, nil},
		{"mixed case and spaces", "  Housing ", CategoryHousing, nil},
		{"empty defaults to other", "", CategoryOther, nil},
		{"unknown category", "floa_bank", "", ErrInvalidCategory},
		{"settlement is reserved", "deferred_settlement", "", ErrInvalidCategory},
		{"carryover is reserved", "carryover", "", ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCategory(tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseCategory(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCategory(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCategory_IsSystem(t *testing.T) {
	if !CategoryDeferredSettlement.IsSystem() || !CategoryCarryover.IsSystem() {
		t.Error("Expected settlement and carryover to be system categories")
	}
	for _, c := range UserCategories() {
		if c.IsSystem() {
			t.Errorf("Expected %s not to be a system category", c)
		}
		if !c.IsValid() {
			t.Errorf("Expected %s to be valid", c)
		}
	}
	if Category("autre").IsValid() {
		t.Error("Expected free-text category to be invalid")
	}
}

func TestIsValidationError(t *testing.T) {
	if !IsValidationError(ErrInvalidAmount) {
		t.Error("Expected ErrInvalidAmount to be a validation error")
	}
	if IsValidationError(ErrMasterExists) {
		t.Error("Expected ErrMasterExists not to be a validation error")
	}
	if !IsInvariantError(ErrMasterExists) {
		t.Error("Expected ErrMasterExists to be an invariant error")
	}
	if IsInvariantError(errors.New("connection refused")) {
		t.Error("Expected store error not to be an invariant error")
	}
}
