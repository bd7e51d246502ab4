// Package logging builds the zap loggers used by the server and the pipeline.
package logging

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the log section of the configuration.
type Config struct {
	Level       string `yaml:"level" env:"LEVEL" envDefault:"info"`
	Pretty      bool   `yaml:"pretty" env:"PRETTY" envDefault:"false"`
	Development bool   `yaml:"development" env:"DEVELOPMENT" envDefault:"false"`
}

// New writes to stdout. Pretty selects the console encoder.
func New(pretty bool, development bool, level zapcore.LevelEnabler) *zap.Logger {
	return NewZapLogger(zapcore.AddSync(os.Stdout), pretty, development, level)
}

// FromConfig parses the level and builds a stdout logger.
func FromConfig(cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return New(cfg.Pretty, cfg.Development, level), nil
}

// ParseLevel accepts zap level names in any case. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func baseEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeDuration = zapcore.SecondsDurationEncoder
	ec.TimeKey = "time"
	return ec
}

func jsonEncoder() zapcore.Encoder {
	ec := baseEncoderConfig()
	ec.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		millis := int64(math.Trunc(float64(t.UnixNano()) / float64(time.Millisecond)))
		enc.AppendInt64(millis)
	}
	return zapcore.NewJSONEncoder(ec)
}

func consoleEncoder() zapcore.Encoder {
	ec := baseEncoderConfig()
	ec.ConsoleSeparator = " "
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05 PM")
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func coreOptions(development bool) []zap.Option {
	var opts []zap.Option
	if development {
		opts = append(opts, zap.AddCaller(), zap.Development())
	}
	return append(opts, zap.AddStacktrace(zap.ErrorLevel))
}

// NewZapLogger writes to syncer and attaches the hostname and pid fields.
func NewZapLogger(syncer zapcore.WriteSyncer, pretty, development bool, level zapcore.LevelEnabler) *zap.Logger {
	encoder := jsonEncoder()
	if pretty {
		encoder = consoleEncoder()
	}
	logger := zap.New(zapcore.NewCore(encoder, syncer, level), coreOptions(development)...)

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return logger.With(
		zap.String("hostname", host),
		zap.Int("pid", os.Getpid()),
	)
}

// WithRequestID is the field the pipeline tags request scoped entries with.
func WithRequestID(id string) zap.Field {
	return zap.String("request_id", id)
}
