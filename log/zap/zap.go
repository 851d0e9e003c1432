// Package zap adapts a *zap.Logger to stratcache.Logger.
package zap

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/stratcache"
)

var _ stratcache.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New builds a production (JSON) zap logger at level ("debug", "info",
// "warn", "error"). An unknown level falls back to info.
func New(level string) (ZapLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return ZapLogger{}, err
	}
	return ZapLogger{L: l.Named("stratcache")}, nil
}

func (z ZapLogger) Debug(msg string, f stratcache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f stratcache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f stratcache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f stratcache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f stratcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
