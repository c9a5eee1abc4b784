package config

import "encoding/json"

// Secret holds a credential (Qdrant API key, embeddings API key) that
// must never leak through logs or serialized config. Every textual
// representation is masked; only Value returns the real string.
type Secret string

const secretMask = "[REDACTED]"

// Value returns the raw credential. Call it only at the point of use.
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether a credential was configured.
func (s Secret) IsSet() bool {
	return s != ""
}

// String implements fmt.Stringer with the masked form. An unset secret
// stays empty so zero values don't look configured.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return secretMask
}

// MarshalText masks the value for any text-based encoder.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MarshalJSON masks the value when config is dumped as JSON.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalText accepts the raw credential from YAML or env vars.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
