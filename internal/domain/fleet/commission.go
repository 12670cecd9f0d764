package fleet

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"
	"unicode/utf8"
)

const (
	RaptorIDLength  = 24
	MaxAPIKeyLength = 64
)

// Commission is the registry record of one physical unit.
type Commission struct {
	ID          uint64
	RaptorID    string
	APIKey      string
	FirmwareTag *string
	Disabled    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func ValidateRaptorID(raptorID string) error {
	if utf8.RuneCountInString(raptorID) != RaptorIDLength {
		return ErrInvalidIdentityLength
	}
	return nil
}

func ValidateAPIKey(apiKey string) error {
	if apiKey == "" {
		return MissingField("api_key")
	}
	if utf8.RuneCountInString(apiKey) > MaxAPIKeyLength {
		return ErrInvalidCredential
	}
	return nil
}

// APIKeyDigest is the indexed lookup value for an api key. The key itself is
// compared with MatchesAPIKey after the row is found.
func APIKeyDigest(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// MatchesAPIKey compares in constant time.
func (c Commission) MatchesAPIKey(apiKey string) bool {
	return subtle.ConstantTimeCompare([]byte(c.APIKey), []byte(apiKey)) == 1
}

func (c Commission) FirmwareTagOrEmpty() string {
	if c.FirmwareTag == nil {
		return ""
	}
	return *c.FirmwareTag
}

// SiteInfo is the unit-local identity row written by provisioning.
type SiteInfo struct {
	Location string
	Client   string
}
