// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Init 初始化全局日志器。service 会作为固定字段出现在每条日志中。
// pretty 模式输出适合本地开发的彩色日志，生产环境应使用 JSON。
func Init(service string, level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	var base zerolog.Logger
	if pretty {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		base = zerolog.New(os.Stderr)
	}
	log.Logger = base.With().Timestamp().Str("service", service).Logger()
}

// Ctx 返回绑定了当前链路信息的日志器。
// 如果 ctx 中存在有效的 Span，则自动附加 trace_id 和 span_id，
// 便于在日志系统中与 Jaeger 链路相互关联。
func Ctx(ctx context.Context) *zerolog.Logger {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return &log.Logger
	}
	l := log.Logger.With().
		Str("trace_id", span.SpanContext().TraceID().String()).
		Str("span_id", span.SpanContext().SpanID().String()).
		Logger()
	return &l
}
