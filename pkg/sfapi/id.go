package sfapi

import (
	"encoding/json"
	"fmt"
)

// idSuffixAlphabet is the alphabet used for the 3-character case checksum
// appended to 15-character identifiers.
const idSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ012345"

// ID is a canonical 18-character Salesforce record identifier.
//
// The service issues both 15-character case-sensitive and 18-character
// case-insensitive forms. ParseID always canonicalizes to the 18-character
// form, so two IDs denote the same record iff they are byte-equal.
type ID struct {
	id [18]byte
}

// ParseID parses a 15- or 18-character identifier and canonicalizes it to
// the 18-character form. The checksum suffix is recomputed from the case
// pattern of the first 15 characters, so parsing is idempotent and
// insensitive to the case of an existing suffix.
func ParseID(s string) (ID, error) {
	if len(s) != 15 && len(s) != 18 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	var out ID

	// Each of the three suffix characters encodes the case pattern of one
	// 5-character chunk as a 5-bit index into the suffix alphabet.
	var bits uint

	for i := 0; i < 15; i++ {
		c := s[i]
		if !isASCIIAlphanumeric(c) {
			return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
		}

		if c >= 'A' && c <= 'Z' {
			bits |= 1 << i
		}

		out.id[i] = c
	}

	out.id[15] = idSuffixAlphabet[bits&0x1F]
	out.id[16] = idSuffixAlphabet[bits>>5&0x1F]
	out.id[17] = idSuffixAlphabet[bits>>10]

	return out, nil
}

// MustParseID is ParseID that panics on invalid input, for use in tests and
// constants.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}

	return id
}

func isASCIIAlphanumeric(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IsZero reports whether the ID is the zero value (no identifier assigned).
func (i ID) IsZero() bool {
	return i == ID{}
}

// String returns the canonical 18-character form.
func (i ID) String() string {
	return string(i.id[:])
}

// MarshalJSON implements json.Marshaler.
func (i ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *ID) UnmarshalJSON(data []byte) error {
	var s string

	err := json.Unmarshal(data, &s)
	if err != nil {
		return fmt.Errorf("unmarshaling ID: %w", err)
	}

	parsed, err := ParseID(s)
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}
