package dispatch

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/hyperjump/pdfsearch/internal/engine"
	"github.com/hyperjump/pdfsearch/internal/models"
)

const defaultWriteTimeout = 10 * time.Second

// Writer upserts records into the engine, throttled and bounded by a timeout.
type Writer struct {
	engine  engine.Engine
	limiter *rate.Limiter
	timeout time.Duration
}

// NewWriter returns a writer over eng. perSecond <= 0 disables throttling; a non-positive
// timeout means 10s.
func NewWriter(eng engine.Engine, perSecond float64, timeout time.Duration) *Writer {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	w := &Writer{engine: eng, timeout: timeout}
	if perSecond > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return w
}

// Write upserts record under id in index.
func (w *Writer) Write(ctx context.Context, index, id string, record *models.IndexRecord) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.engine.Upsert(ctx, index, id, record)
}
