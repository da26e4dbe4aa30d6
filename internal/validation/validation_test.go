package validation

import (
	"testing"

	"github.com/google/uuid"
)

func TestValidateTabID(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    int
		wantErr string
	}{
		{"valid", "42", 42, ""},
		{"zero", "0", 0, "tab id must be a positive integer"},
		{"negative", "-3", 0, "tab id must be a positive integer"},
		{"notNumber", "abc", 0, "tab id must be a positive integer"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateTabID(tc.raw)
			if tc.wantErr == "" && (err != nil || got != tc.want) {
				t.Fatalf("expected %d, got %d err=%v", tc.want, got, err)
			}
			if tc.wantErr != "" {
				if err == nil || err.Error() != tc.wantErr {
					t.Fatalf("expected error %q, got %v", tc.wantErr, err)
				}
			}
		})
	}
}

func TestValidateWindowID(t *testing.T) {
	if err := ValidateWindowID(1); err != nil {
		t.Fatalf("expected valid window id, got %v", err)
	}
	if err := ValidateWindowID(0); err == nil {
		t.Fatalf("expected error for window id 0")
	}
}

func TestValidateBuyerID(t *testing.T) {
	if err := ValidateBuyerID(uuid.NewString()); err != nil {
		t.Fatalf("expected uuid to be valid, got %v", err)
	}
	if err := ValidateBuyerID("1"); err != nil {
		t.Fatalf("expected short imported id to be valid, got %v", err)
	}
	if err := ValidateBuyerID("../etc"); err == nil {
		t.Fatalf("expected error for id with path characters")
	}
	if err := ValidateBuyerID(""); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestValidateBuyerName(t *testing.T) {
	got, err := ValidateBuyerName("  Johnson   Auto <Sales> ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Johnson Auto Sales" {
		t.Fatalf("expected normalized name, got %q", got)
	}

	if _, err := ValidateBuyerName("   "); err == nil {
		t.Fatalf("expected error for blank name")
	}
}

func TestValidateContactFields(t *testing.T) {
	if err := ValidateEmail(""); err != nil {
		t.Fatalf("empty email should be allowed: %v", err)
	}
	if err := ValidateEmail("mike@johnsonauto.com"); err != nil {
		t.Fatalf("expected valid email: %v", err)
	}
	if err := ValidateEmail("Mike <mike@johnsonauto.com>"); err == nil {
		t.Fatalf("expected display-name form to be rejected")
	}
	if err := ValidatePhone("(555) 123-4567"); err != nil {
		t.Fatalf("expected valid phone: %v", err)
	}
	if err := ValidatePhone("call me"); err == nil {
		t.Fatalf("expected invalid phone")
	}
	if err := ValidateRating(4.8); err != nil {
		t.Fatalf("expected valid rating: %v", err)
	}
	if err := ValidateRating(6); err == nil {
		t.Fatalf("expected rating above 5 to fail")
	}
}

func TestValidateMessage(t *testing.T) {
	got, err := ValidateMessage("  clean title, runs and drives  ")
	if err != nil || got != "clean title, runs and drives" {
		t.Fatalf("unexpected result %q err=%v", got, err)
	}
	long := make([]byte, 1001)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := ValidateMessage(string(long)); err == nil {
		t.Fatalf("expected long message to fail")
	}
}
