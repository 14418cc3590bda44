package observability

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// LogHandler is a slog.Handler that emits JSON log lines enriched with the
// trace and span ids of the calling context, and counts emitted records on
// the meter. Records are buffered and written by a background goroutine;
// when the buffer is full the record is dropped and the drop is counted,
// so logging never blocks hub operations.
type LogHandler struct {
	opts        HandlerOptions
	serviceName string
	attrs       []slog.Attr
	group       string

	logCounter  metric.Int64Counter
	dropCounter metric.Int64Counter

	buffer   chan logEntry
	shutdown chan struct{}
	once     *sync.Once
	wg       *sync.WaitGroup
	writeMu  *sync.Mutex
}

// HandlerOptions configures a LogHandler.
type HandlerOptions struct {
	Level      slog.Level
	Writer     io.Writer
	BufferSize int
}

type logEntry struct {
	time    time.Time
	level   slog.Level
	msg     string
	attrs   []slog.Attr
	traceID string
	spanID  string
}

// NewLogHandler builds a LogHandler writing to opts.Writer (stderr when
// nil) and registering its counters on meter.
func NewLogHandler(meter metric.Meter, serviceName string, opts HandlerOptions) (*LogHandler, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}

	logCounter, err := meter.Int64Counter(
		"logs_total",
		metric.WithDescription("Total number of log entries emitted"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	dropCounter, err := meter.Int64Counter(
		"logs_dropped_total",
		metric.WithDescription("Total number of log entries dropped on a full buffer"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	h := &LogHandler{
		opts:        opts,
		serviceName: serviceName,
		logCounter:  logCounter,
		dropCounter: dropCounter,
		buffer:      make(chan logEntry, opts.BufferSize),
		shutdown:    make(chan struct{}),
		once:        &sync.Once{},
		wg:          &sync.WaitGroup{},
		writeMu:     &sync.Mutex{},
	}

	h.wg.Add(1)
	go h.processLogs()

	return h, nil
}

func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(attr slog.Attr) bool {
		if h.group != "" {
			attr.Key = h.group + "." + attr.Key
		}
		attrs = append(attrs, attr)
		return true
	})

	entry := logEntry{
		time:  r.Time,
		level: r.Level,
		msg:   r.Message,
		attrs: attrs,
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		entry.traceID = sc.TraceID().String()
		entry.spanID = sc.SpanID().String()
	}

	select {
	case h.buffer <- entry:
	default:
		h.dropCounter.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("service", h.serviceName),
		))
	}
	return nil
}

// WithAttrs returns a handler sharing the buffer and background processor
// but carrying the extra attributes on every record.
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.attrs = append(slices.Clone(h.attrs), attrs...)
	return c
}

// WithGroup returns a handler prefixing record attribute keys with the
// group name. Nested groups concatenate with dots.
func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	if h.group != "" {
		c.group = h.group + "." + name
	} else {
		c.group = name
	}
	return c
}

func (h *LogHandler) clone() *LogHandler {
	c := *h
	return &c
}

func (h *LogHandler) processLogs() {
	defer h.wg.Done()

	for {
		select {
		case entry := <-h.buffer:
			h.writeEntry(entry)
		case <-h.shutdown:
			for {
				select {
				case entry := <-h.buffer:
					h.writeEntry(entry)
				default:
					return
				}
			}
		}
	}
}

func (h *LogHandler) writeEntry(entry logEntry) {
	h.logCounter.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("level", entry.level.String()),
		attribute.String("service", h.serviceName),
	))

	line := map[string]any{
		"time":    entry.time.Format(time.RFC3339Nano),
		"level":   entry.level.String(),
		"msg":     entry.msg,
		"service": h.serviceName,
	}
	if entry.traceID != "" {
		line["trace_id"] = entry.traceID
		line["span_id"] = entry.spanID
	}
	for _, attr := range entry.attrs {
		line[attr.Key] = attr.Value.Resolve().Any()
	}

	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	data = append(data, '\n')

	h.writeMu.Lock()
	h.opts.Writer.Write(data)
	h.writeMu.Unlock()
}

// Shutdown stops the background processor after draining buffered records.
func (h *LogHandler) Shutdown(ctx context.Context) error {
	h.once.Do(func() { close(h.shutdown) })

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
