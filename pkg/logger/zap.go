package logger

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type zapLogger struct {
	log *zap.Logger
}

// NewLogger writes JSON to stdout. Production logs at info with sampling,
// development at debug with coloured levels.
func NewLogger(serviceName string, isProd bool) Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	level := zapcore.DebugLevel
	if isProd {
		enc = zap.NewProductionEncoderConfig()
		level = zapcore.InfoLevel
	}
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	var core zapcore.Core = zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(os.Stdout), level)
	if isProd {
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
	}
	return &zapLogger{log: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).
		With(zap.String("service", serviceName))}
}

func (z *zapLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	z.write(ctx, zapcore.DebugLevel, msg, fields)
}

func (z *zapLogger) Info(ctx context.Context, msg string, fields ...Field) {
	z.write(ctx, zapcore.InfoLevel, msg, fields)
}

func (z *zapLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	z.write(ctx, zapcore.WarnLevel, msg, fields)
}

func (z *zapLogger) Error(ctx context.Context, msg string, fields ...Field) {
	z.write(ctx, zapcore.ErrorLevel, msg, fields)
}

func (z *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{log: z.log.With(toZap(fields, 0)...)}
}

// write skips field conversion entirely when the level is disabled, so Lazy
// fields are never evaluated for dropped lines.
func (z *zapLogger) write(ctx context.Context, lvl zapcore.Level, msg string, fields []Field) {
	ce := z.log.Check(lvl, msg)
	if ce == nil {
		return
	}
	out := toZap(fields, 2)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out = append(out,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	ce.Write(out...)
}

func toZap(fields []Field, extra int) []zap.Field {
	if len(fields) == 0 && extra == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields)+extra)
	for _, f := range fields {
		out = append(out, fieldToZap(f))
	}
	return out
}

func fieldToZap(f Field) zap.Field {
	val := f.Value
	if fn, ok := val.(func() any); ok {
		val = fn()
	}
	// A Kind that disagrees with the value falls through to zap.Any.
	switch v := val.(type) {
	case string:
		if f.Kind == KindString {
			return zap.String(f.Key, v)
		}
	case int:
		if f.Kind == KindInt {
			return zap.Int(f.Key, v)
		}
	case int64:
		if f.Kind == KindInt64 {
			return zap.Int64(f.Key, v)
		}
	case float64:
		if f.Kind == KindFloat64 {
			return zap.Float64(f.Key, v)
		}
	case time.Duration:
		if f.Kind == KindDuration {
			return zap.Duration(f.Key, v)
		}
	case error:
		if f.Kind == KindError {
			return zap.NamedError(f.Key, v)
		}
	}
	return zap.Any(f.Key, val)
}
