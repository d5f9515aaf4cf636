package timing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidDuration is returned when a duration cannot be read as a positive
// number of minutes.
var ErrInvalidDuration = errors.New("invalid duration minutes")

// ParseMinutes coerces a numeric-looking string ("60", " 60 ", "60.0") into
// whole minutes. Fractional minutes are rejected rather than rounded.
func ParseMinutes(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrInvalidDuration
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
	}
	if f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
	}
	return int(f), nil
}

// Minutes is a duration in whole minutes that decodes from either a JSON
// number or a numeric string.
type Minutes int

// UnmarshalJSON implements json.Unmarshaler.
func (m *Minutes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDuration, err)
		}
	}

	n, err := ParseMinutes(raw)
	if err != nil {
		return err
	}
	*m = Minutes(n)
	return nil
}

// Int returns m as a plain int.
func (m Minutes) Int() int { return int(m) }
