package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Duration is a time.Duration read from text such as "250ms" or "1m30s".
// A bare number is taken as seconds, so LINKRANK_RANKING_BATCH_TIMEOUT=8
// means eight seconds.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	parsed, err := time.ParseDuration(s)
	if err != nil {
		secs, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		parsed = time.Duration(secs * float64(time.Second))
	}
	if parsed < 0 {
		return fmt.Errorf("duration must not be negative: %q", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Secret is a credential read from config. Every formatting and encoding
// path prints a mask; Value returns the credential itself.
type Secret string

const secretMask = "[REDACTED]"

func (s Secret) mask() string {
	if s == "" {
		return ""
	}
	return secretMask
}

func (s Secret) String() string   { return s.mask() }
func (s Secret) GoString() string { return fmt.Sprintf("Secret(%q)", s.mask()) }

func (s Secret) MarshalText() ([]byte, error) { return []byte(s.mask()), nil }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.mask()) }

func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}

// Value returns the unmasked credential.
func (s Secret) Value() string { return string(s) }

func (s Secret) IsSet() bool { return s != "" }
