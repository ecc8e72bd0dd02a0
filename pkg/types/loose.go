package types

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// LooseString accepts a JSON string, number or boolean and keeps its text.
// Spreadsheet exports frequently carry phone numbers as numbers. Objects and
// arrays are recorded as Malformed instead of failing the whole document.
type LooseString struct {
	Value     string
	Malformed bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *LooseString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*s = LooseString{}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '"':
		return json.Unmarshal(trimmed, &s.Value)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		s.Value = strconv.FormatBool(b)
		return nil
	case '{', '[':
		s.Malformed = true
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		s.Value = formatNumber(n)
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (s LooseString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Value)
}

// String returns the decoded text.
func (s LooseString) String() string {
	return s.Value
}

func formatNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return n.String()
}

// LooseBool accepts booleans, numbers and common yes/no spellings.
type LooseBool struct {
	Value bool
}

var (
	truthy = map[string]bool{"1": true, "true": true, "yes": true, "y": true, "on": true, "是": true}
	falsy  = map[string]bool{"": true, "0": true, "false": true, "no": true, "n": true, "off": true, "否": true}
)

// ParseLooseBool interprets text the way LooseBool does. Unrecognized
// non-empty text counts as true.
func ParseLooseBool(text string) bool {
	key := strings.ToLower(strings.TrimSpace(text))
	if truthy[key] {
		return true
	}
	if falsy[key] {
		return false
	}
	return true
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *LooseBool) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*b = LooseBool{}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		b.Value = ParseLooseBool(text)
	case 't', 'f':
		return json.Unmarshal(trimmed, &b.Value)
	case '{', '[':
		b.Value = true
	default:
		var f float64
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return err
		}
		b.Value = f != 0
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (b LooseBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Value)
}
