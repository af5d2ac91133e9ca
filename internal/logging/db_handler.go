package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	dbBatchSize     = 50
	dbFlushInterval = 5 * time.Second
)

// DBHandler is an slog.Handler that batches ERROR+ records into system_logs.
type DBHandler struct {
	core  *dbCore
	attrs []slog.Attr
}

type dbCore struct {
	db       *gorm.DB
	fallback *slog.Logger

	mu     sync.Mutex
	buffer []models.SystemLog

	kick     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDBHandler starts the flush loop. fallback receives the handler's own
// failures so they never loop back into the database.
func NewDBHandler(db *gorm.DB, fallback *slog.Logger) *DBHandler {
	return newDBHandler(db, fallback, dbFlushInterval)
}

func newDBHandler(db *gorm.DB, fallback *slog.Logger, interval time.Duration) *DBHandler {
	c := &dbCore{
		db:       db,
		fallback: fallback,
		buffer:   make([]models.SystemLog, 0, dbBatchSize),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	c.wg.Add(1)
	go c.flushLoop(interval)
	return &DBHandler{core: c}
}

func (c *dbCore) flushLoop(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.kick:
			c.flush()
		case <-c.done:
			c.flush()
			return
		}
	}
}

func (c *dbCore) flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]models.SystemLog, 0, dbBatchSize)
	c.mu.Unlock()

	if err := c.db.CreateInBatches(batch, dbBatchSize).Error; err != nil {
		c.fallback.Error("failed to flush system logs to DB", "error", err, "count", len(batch))
	}
}

// Stop flushes pending records and waits for the flush loop to exit.
func (h *DBHandler) Stop() {
	h.core.stopOnce.Do(func() {
		close(h.core.done)
	})
	h.core.wg.Wait()
}

// Enabled only handles ERROR and above.
func (h *DBHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *DBHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]any)
	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "trace_id":
			entry.TraceID = a.Value.String()
		case "user_id":
			s := a.Value.String()
			entry.ActorID = &s
		case "report_id":
			if a.Value.Kind() == slog.KindInt64 {
				id := a.Value.Int64()
				entry.ReportID = &id
			}
		case "action":
			entry.Action = a.Value.String()
		case "error":
			entry.Error = a.Value.String()
		default:
			extra[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	c := h.core
	c.mu.Lock()
	c.buffer = append(c.buffer, entry)
	full := len(c.buffer) >= dbBatchSize
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &DBHandler{core: h.core, attrs: merged}
}

// WithGroup is a no-op: system_logs has flat columns.
func (h *DBHandler) WithGroup(string) slog.Handler {
	return h
}
