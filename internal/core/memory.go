package core

import (
	"context"
	"time"
)

type MemoryRecord struct {
	Index          int       `json:"index"`
	Embedding      []float64 `json:"-"`
	UserMessage    string    `json:"user_message"`
	MemoryContent  string    `json:"memory_content"`
	DisplayContent string    `json:"display_content"`
	Timestamp      time.Time `json:"timestamp"`
}

// MemoryContext is what a run sees of its session history.
// Semantic holds older turns in rank order, Recent the verbatim window in conversation order.
type MemoryContext struct {
	Semantic []MemoryRecord
	Recent   []MemoryRecord
}

// Records returns semantic hits first, followed by the verbatim window.
func (c MemoryContext) Records() []MemoryRecord {
	out := make([]MemoryRecord, 0, len(c.Semantic)+len(c.Recent))
	out = append(out, c.Semantic...)
	return append(out, c.Recent...)
}

func (c MemoryContext) Empty() bool {
	return len(c.Semantic) == 0 && len(c.Recent) == 0
}

type Memory interface {
	Add(ctx context.Context, userMessage, displayContent, memoryContent string) (MemoryRecord, error)
	RetrieveContext(ctx context.Context, query string, lastN, k int) MemoryContext
}
