package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one unit of work and writes a single log entry when it ends.
// Spans nest through the context: a child keeps the trace id and records
// its parent's span id.
type Span struct {
	logger *slog.Logger
	start  time.Time
	err    error
}

// StartSpan opens a span named name under whatever span ctx carries. The
// returned context holds a logger tagged with the span's ids and attrs.
func StartSpan(ctx context.Context, name string, attrs ...slog.Attr) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	fields := make([]any, 0, len(attrs)+4)

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
		fields = append(fields, slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	fields = append(fields, slog.String("span_id", spanID), slog.String("span_name", name))
	if parent := SpanIDFromContext(ctx); parent != "" {
		fields = append(fields, slog.String("parent_span_id", parent))
	}
	for _, attr := range attrs {
		fields = append(fields, attr)
	}

	logger := FromContext(ctx).With(fields...)
	ctx = WithSpanID(WithLogger(ctx, logger), spanID)

	return ctx, &Span{logger: logger, start: time.Now()}
}

// Fail marks the span as failed with err. The last non-nil error wins.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.err = err
}

// End logs the span's outcome: Debug when it succeeded, Warn with the
// recorded error when Fail was called.
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if s.err != nil {
		s.logger.Warn("span failed", slog.Any("error", s.err), elapsed)
		return
	}
	s.logger.Debug("span completed", elapsed)
}
