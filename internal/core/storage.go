package core

import (
	"context"
	"time"
)

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     int       `json:"turns"`
}

// TurnRecord is the persisted form of a completed turn.
// The embedding is stored so a reload ranks exactly like the live session did.
type TurnRecord struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"session_id"`
	Index          int       `json:"index"`
	UserMessage    string    `json:"user_message"`
	DisplayContent string    `json:"display_content"`
	MemoryContent  string    `json:"memory_content"`
	Embedding      []float64 `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

func (t TurnRecord) MemoryRecord() MemoryRecord {
	return MemoryRecord{
		Index:          t.Index,
		Embedding:      t.Embedding,
		UserMessage:    t.UserMessage,
		MemoryContent:  t.MemoryContent,
		DisplayContent: t.DisplayContent,
		Timestamp:      t.CreatedAt,
	}
}

type HistoryRepository interface {
	CreateSession(ctx context.Context, id, title string) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	UpdateTitle(ctx context.Context, id, title string) error
	DeleteSession(ctx context.Context, id string) error
	SaveTurn(ctx context.Context, sessionID string, turn TurnRecord) (TurnRecord, error)
	LoadSession(ctx context.Context, sessionID string) ([]TurnRecord, error)
}
