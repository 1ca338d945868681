package event

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDurationSeconds parses the two duration formats the game client
// emits: colon-delimited ("H:M:S", "M:S", "S", fractional seconds
// allowed and truncated) and ISO-8601 ("PT1H23M45S", any component
// optional). Returns whole seconds.
func ParseDurationSeconds(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty duration", ErrBadDuration)
	}
	if strings.HasPrefix(strings.ToUpper(s), "PT") {
		return parseISOSeconds(s)
	}
	return parseColonSeconds(s)
}

func parseColonSeconds(s string) (int64, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}
	var total int64
	for _, part := range parts {
		part = strings.TrimSpace(part)
		// Only the seconds component may carry a fraction; truncate it.
		if i := strings.IndexByte(part, '.'); i >= 0 {
			part = part[:i]
		}
		if part == "" {
			part = "0"
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
		}
		total = total*60 + n
	}
	return total, nil
}

func parseISOSeconds(s string) (int64, error) {
	body := strings.ToUpper(s)[2:]
	if body == "" {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
	}
	var total int64
	var num strings.Builder
	for _, r := range body {
		switch {
		case r >= '0' && r <= '9' || r == '.':
			num.WriteRune(r)
		case r == 'H' || r == 'M' || r == 'S':
			raw := num.String()
			num.Reset()
			if i := strings.IndexByte(raw, '.'); i >= 0 {
				raw = raw[:i]
			}
			if raw == "" {
				return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
			}
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
			}
			switch r {
			case 'H':
				total += n * 3600
			case 'M':
				total += n * 60
			case 'S':
				total += n
			}
		default:
			return 0, fmt.Errorf("%w: %q", ErrBadDuration, s)
		}
	}
	if num.Len() > 0 {
		return 0, fmt.Errorf("%w: trailing number in %q", ErrBadDuration, s)
	}
	return total, nil
}
