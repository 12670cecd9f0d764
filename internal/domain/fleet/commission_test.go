package fleet

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateRaptorID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "exact", id: "A1B2C3D4E5F6A1B2C3D4E5F6"},
		{name: "short", id: "short", wantErr: true},
		{name: "23 chars", id: strings.Repeat("a", 23), wantErr: true},
		{name: "25 chars", id: strings.Repeat("a", 25), wantErr: true},
		{name: "empty", id: "", wantErr: true},
		{name: "multibyte counts characters", id: strings.Repeat("é", 24)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRaptorID(tt.id)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentityLength) {
					t.Fatalf("ValidateRaptorID(%q) error = %v", tt.id, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateRaptorID(%q) error = %v", tt.id, err)
			}
		})
	}
}

func TestValidateAPIKey(t *testing.T) {
	err := ValidateAPIKey("")
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("ValidateAPIKey(empty) error = %v", err)
	}
	var missing *MissingFieldError
	if !errors.As(err, &missing) || missing.Field != "api_key" {
		t.Fatalf("ValidateAPIKey(empty) field = %+v", missing)
	}

	if err := ValidateAPIKey(strings.Repeat("k", 65)); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("ValidateAPIKey(65) error = %v", err)
	}
	if err := ValidateAPIKey(strings.Repeat("k", 64)); err != nil {
		t.Fatalf("ValidateAPIKey(64) error = %v", err)
	}
}

func TestAPIKeyDigestAndMatch(t *testing.T) {
	if APIKeyDigest("k1") == APIKeyDigest("k2") {
		t.Fatalf("APIKeyDigest() collided")
	}
	if len(APIKeyDigest("k1")) != 64 {
		t.Fatalf("APIKeyDigest() len = %d", len(APIKeyDigest("k1")))
	}

	c := Commission{APIKey: "k1"}
	if !c.MatchesAPIKey("k1") {
		t.Fatalf("MatchesAPIKey(k1) = false")
	}
	if c.MatchesAPIKey("k1 ") || c.MatchesAPIKey("") {
		t.Fatalf("MatchesAPIKey() accepted a different key")
	}
}

func TestFirmwareDrift(t *testing.T) {
	tag := "v1.2.0"
	c := Commission{RaptorID: "A1B2C3D4E5F6A1B2C3D4E5F6", FirmwareTag: &tag}

	if drift := NewFirmwareDrift(c, "v1.2.0", true); !drift.InSync {
		t.Fatalf("NewFirmwareDrift() = %+v, want in sync", drift)
	}
	if drift := NewFirmwareDrift(c, "v1.3.0", true); drift.InSync {
		t.Fatalf("NewFirmwareDrift() = %+v, want drift", drift)
	}
	if drift := NewFirmwareDrift(Commission{}, "", false); drift.InSync {
		t.Fatalf("NewFirmwareDrift() without report = %+v", drift)
	}
}
