// Package logging builds the zap logger the daemon runs on: JSON or
// console output on stdout, an optional OpenTelemetry bridge via
// otelzap, encoder-level credential redaction, and rate sampling for
// everything below Error.
package logging

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	otellog "go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config describes the logger. The zero value is not usable; start from
// NewDefaultConfig.
type Config struct {
	Level   string `koanf:"level"`
	Format  string `koanf:"format"` // "json" or "console"
	Stdout  bool   `koanf:"stdout"`
	OTEL    bool   `koanf:"otel"`
	Service string `koanf:"service"`

	Sampling  SamplingConfig  `koanf:"sampling"`
	Redaction RedactionConfig `koanf:"redaction"`
}

// SamplingConfig rate-limits entries below Error. Errors always pass.
type SamplingConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Tick       time.Duration `koanf:"tick"`
	Initial    int           `koanf:"initial"`
	Thereafter int           `koanf:"thereafter"`
}

// RedactionConfig lists field names masked wholesale and value patterns
// that trigger masking on any string field.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns the production defaults: info-level JSON on
// stdout, redaction on, a 100-then-1-in-10 sampler per second.
func NewDefaultConfig() *Config {
	return &Config{
		Level:   "info",
		Format:  "json",
		Stdout:  true,
		OTEL:    true,
		Service: "convergd",
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"api_key", "apikey", "authorization", "bearer",
				"password", "secret", "token",
				"qdrant_api_key", "embeddings_api_key",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
			},
		},
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("level %q: %w", c.Level, err)
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be json or console, got %q", c.Format)
	}
	if !c.Stdout && !c.OTEL {
		return errors.New("no log sink enabled")
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick <= 0 {
			return errors.New("sampling tick must be positive")
		}
		if c.Sampling.Initial <= 0 {
			return errors.New("sampling initial must be positive")
		}
	}
	if _, err := compileRules(c.Redaction); err != nil {
		return err
	}
	return nil
}

// Logger owns the assembled zap logger. Most of the codebase takes a
// plain *zap.Logger; use Underlying at the composition root.
type Logger struct {
	zap *zap.Logger
	cfg *Config
}

// NewLogger assembles a logger from the config. provider may be nil, in
// which case the OTEL sink is skipped even when enabled.
func NewLogger(cfg *Config, provider otellog.LoggerProvider) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	level, _ := zapcore.ParseLevel(cfg.Level)

	var cores []zapcore.Core
	if cfg.Stdout {
		enc, err := newRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, err
		}
		core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)
		if cfg.Sampling.Enabled {
			core = sampleBelowError(core, cfg.Sampling)
		}
		cores = append(cores, core)
	}
	if cfg.OTEL && provider != nil {
		cores = append(cores, otelzap.NewCore(cfg.Service,
			otelzap.WithLoggerProvider(provider)))
	}
	if len(cores) == 0 {
		return nil, errors.New("no log sink available")
	}

	z := zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel))
	if cfg.Service != "" {
		z = z.With(zap.String("service", cfg.Service))
	}
	return &Logger{zap: z, cfg: cfg}, nil
}

// Underlying returns the assembled *zap.Logger for handing to
// collaborators that take zap directly.
func (l *Logger) Underlying() *zap.Logger {
	return l.zap
}

// Named returns a child logger with the given name segment appended.
func (l *Logger) Named(name string) *Logger {
	return &Logger{zap: l.zap.Named(name), cfg: l.cfg}
}

// With returns a child logger carrying the extra fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...), cfg: l.cfg}
}

// Sync flushes buffered entries. EINVAL and ENOTTY from syncing a
// terminal-backed stdout are swallowed.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

// sampleBelowError splits the core in two: Error and above pass
// untouched, everything below goes through zap's sampler.
func sampleBelowError(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	severe := gateCore{core, func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel }}
	rest := gateCore{core, func(l zapcore.Level) bool { return l < zapcore.ErrorLevel }}
	sampled := zapcore.NewSamplerWithOptions(rest, cfg.Tick, cfg.Initial, cfg.Thereafter)
	return zapcore.NewTee(severe, sampled)
}

// gateCore admits only the levels its predicate accepts.
type gateCore struct {
	zapcore.Core
	allow func(zapcore.Level) bool
}

func (g gateCore) Enabled(l zapcore.Level) bool {
	return g.allow(l) && g.Core.Enabled(l)
}

func (g gateCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !g.Enabled(e.Level) {
		return ce
	}
	return g.Core.Check(e, ce)
}

func (g gateCore) With(fields []zapcore.Field) zapcore.Core {
	return gateCore{g.Core.With(fields), g.allow}
}
