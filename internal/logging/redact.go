package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chakssp/convergd/internal/config"
)

const redactedPlaceholder = "[REDACTED]"

// maxPatternLen bounds redaction patterns so a pathological regex in
// config cannot stall the hot logging path.
const maxPatternLen = 256

// redactionRules is the compiled form of RedactionConfig: a lowercase
// key set plus value patterns.
type redactionRules struct {
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

func compileRules(cfg RedactionConfig) (*redactionRules, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	rules := &redactionRules{keys: make(map[string]struct{}, len(cfg.Fields))}
	for _, f := range cfg.Fields {
		rules.keys[strings.ToLower(f)] = struct{}{}
	}
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern exceeds %d chars: %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("redaction pattern %q: %w", p, err)
		}
		rules.patterns = append(rules.patterns, re)
	}
	return rules, nil
}

func (r *redactionRules) sensitiveKey(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r.keys[strings.ToLower(key)]
	return ok
}

func (r *redactionRules) sensitiveValue(val string) bool {
	if r == nil {
		return false
	}
	for _, re := range r.patterns {
		if re.MatchString(val) {
			return true
		}
	}
	return false
}

// redactingEncoder masks sensitive fields before they reach the
// underlying encoder. Key matches mask any field type; value patterns
// apply to string fields only.
type redactingEncoder struct {
	zapcore.Encoder
	rules *redactionRules
}

func newRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (zapcore.Encoder, error) {
	rules, err := compileRules(cfg)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		return base, nil
	}
	return &redactingEncoder{Encoder: base, rules: rules}, nil
}

func (e *redactingEncoder) AddString(key, val string) {
	if e.rules.sensitiveKey(key) || e.rules.sensitiveValue(val) {
		e.Encoder.AddString(key, redactedPlaceholder)
		return
	}
	e.Encoder.AddString(key, val)
}

func (e *redactingEncoder) AddByteString(key string, val []byte) {
	if e.rules.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedPlaceholder)
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *redactingEncoder) AddReflected(key string, val interface{}) error {
	if e.rules.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedPlaceholder)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *redactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.rules.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedPlaceholder)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *redactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.rules.sensitiveKey(key) {
		e.Encoder.AddString(key, redactedPlaceholder)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *redactingEncoder) Clone() zapcore.Encoder {
	return &redactingEncoder{Encoder: e.Encoder.Clone(), rules: e.rules}
}

// Secret builds a field for a config.Secret that records only the
// value's length. Works on any sink, including ones without the
// redacting encoder.
func Secret(key string, val config.Secret) zap.Field {
	return zap.String(key, fmt.Sprintf("[REDACTED:%d]", len(val.Value())))
}
