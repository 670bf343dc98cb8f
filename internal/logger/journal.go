package logger

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ykvlv/stockwatch-bot/internal/store"
)

const journalWriteTimeout = 2 * time.Second

// WithJournal tees every entry at or above level into j.
func WithJournal(log *zap.Logger, j store.Journal, level zapcore.LevelEnabler) *zap.Logger {
	jc := NewJournalCore(j, level)
	return log.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, jc)
	}))
}

// journalCore is a zapcore.Core writing entries to a store.Journal.
// Write errors are dropped: the console core still has the entry.
type journalCore struct {
	zapcore.LevelEnabler
	journal store.Journal
	fields  []zapcore.Field
}

// NewJournalCore returns a core that appends entries to j.
func NewJournalCore(j store.Journal, level zapcore.LevelEnabler) zapcore.Core {
	return &journalCore{LevelEnabler: level, journal: j}
}

func (c *journalCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *journalCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *journalCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	var encoded string
	if len(enc.Fields) > 0 {
		if b, err := json.Marshal(enc.Fields); err == nil {
			encoded = string(b)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	_ = c.journal.Append(ctx, store.Entry{
		Time:    e.Time,
		Level:   e.Level.String(),
		Logger:  e.LoggerName,
		Message: e.Message,
		Fields:  encoded,
	})
	return nil
}

func (c *journalCore) Sync() error { return nil }
