package domain

import (
	"strconv"
	"strings"
	"time"
)

// MSE is a registered micro/small enterprise.
type MSE struct {
	ID          int64     `json:"id" yaml:"id"`
	UdyamNumber string    `json:"udyam_number" yaml:"udyam_number"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	District    *string   `json:"district" yaml:"district"`
	State       *string   `json:"state" yaml:"state"`
	PinCode     *string   `json:"pin_code" yaml:"pin_code"`
	NICCode     *string   `json:"nic_code" yaml:"nic_code"`
	Language    string    `json:"language" yaml:"language"`
	CreatedAt   Timestamp `json:"created_at" yaml:"created_at"`
}

// Timestamp decodes both RFC 3339 and the zone-less ISO 8601 form the
// AgentMap API emits; zone-less values are taken as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return Errorf(KindInvalidInput, "unrecognized timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}

// MSERegistration is the body of POST /mse/. Fields are forwarded as-is;
// the AgentMap API owns validation.
type MSERegistration struct {
	UdyamNumber string `json:"udyam_number"`
	Name        string `json:"name"`
	Description string `json:"description"`
	State       string `json:"state"`
	District    string `json:"district"`
	PinCode     string `json:"pin_code"`
	NICCode     string `json:"nic_code"`
	Language    string `json:"language"`
}

// ListMSEsQuery filters the review queue.
type ListMSEsQuery struct {
	State string
	Skip  int
	Limit int
}

// DefaultReviewLimit is the review queue page size.
const DefaultReviewLimit = 20

// ParseMSEID validates a user-supplied identifier before any remote call.
func ParseMSEID(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, Errorf(KindInvalidIdentifier, "MSE ID is required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, NewError(KindInvalidIdentifier, "MSE ID must be a number", err)
	}
	return ValidateMSEID(id)
}

// ValidateMSEID rejects non-positive identifiers.
func ValidateMSEID(id int64) (int64, error) {
	if id <= 0 {
		return 0, Errorf(KindInvalidIdentifier, "MSE ID must be a positive integer, got %d", id)
	}
	return id, nil
}

// MarshalYAML renders the wrapped time directly.
func (t Timestamp) MarshalYAML() (any, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UTC().Format(time.RFC3339), nil
}
