package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/service/memory"
	"github.com/sandevgo/chorus/internal/service/pipeline"
	"github.com/sandevgo/chorus/pkg/log"
)

type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (core.Result, error)
}

type Titler interface {
	Title(ctx context.Context, message string) string
}

// Outcome is the single value delivered for a submitted query.
type Outcome struct {
	Result core.Result
	Err    error
}

type entry struct {
	mem    *memory.Memory
	titled bool
}

// Manager owns the live sessions. It hydrates memory from the repository,
// runs one query per session at a time and persists completed turns.
type Manager struct {
	runner   Runner
	repo     core.HistoryRepository
	embedder core.Embedder
	titler   Titler

	sessions *cache.Cache

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(runner Runner, repo core.HistoryRepository, embedder core.Embedder, titler Titler, idleTTL time.Duration) *Manager {
	return &Manager{
		runner:   runner,
		repo:     repo,
		embedder: embedder,
		titler:   titler,
		sessions: cache.New(idleTTL, idleTTL),
		active:   make(map[string]context.CancelFunc),
	}
}

// Submit starts a run for query in the background and returns a channel that
// delivers exactly one Outcome. An empty sessionID starts a new session.
// ctx bounds the run; Cancel stops it early.
func (m *Manager) Submit(ctx context.Context, sessionID, query string, onProgress func(core.Progress)) (<-chan Outcome, string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	runCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if _, busy := m.active[sessionID]; busy {
		m.mu.Unlock()
		cancel()
		return nil, sessionID, fmt.Errorf("session %q: %w", sessionID, core.ErrSessionBusy)
	}
	m.active[sessionID] = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	out := make(chan Outcome, 1)
	go func() {
		defer m.wg.Done()
		defer close(out)
		m.work(runCtx, sessionID, query, onProgress, out)
	}()
	return out, sessionID, nil
}

// Ask runs query and waits for the outcome.
func (m *Manager) Ask(ctx context.Context, sessionID, query string, onProgress func(core.Progress)) (core.Result, error) {
	out, _, err := m.Submit(ctx, sessionID, query, onProgress)
	if err != nil {
		return core.Result{}, err
	}
	o := <-out
	return o.Result, o.Err
}

// Cancel stops the in-flight run of a session. It reports whether one was running.
func (m *Manager) Cancel(sessionID string) bool {
	m.mu.Lock()
	cancel, ok := m.active[sessionID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (m *Manager) Busy(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[sessionID]
	return ok
}

func (m *Manager) work(ctx context.Context, sessionID, query string, onProgress func(core.Progress), out chan<- Outcome) {
	logger := log.FromCtx(ctx).With().Str("component", "session").Str("session_id", sessionID).Logger()

	e, err := m.hydrate(ctx, sessionID)
	if err != nil {
		m.release(sessionID)
		out <- Outcome{Err: err}
		return
	}

	res, err := m.runner.Run(ctx, pipeline.Request{
		SessionID:  sessionID,
		Query:      query,
		Memory:     e.mem,
		OnProgress: onProgress,
	})
	if err != nil {
		m.release(sessionID)
		out <- Outcome{Result: res, Err: err}
		return
	}

	// the turn is already in memory; storage must follow even if ctx ends now
	rec := res.Record
	_, err = m.repo.SaveTurn(context.WithoutCancel(ctx), sessionID, core.TurnRecord{
		Index:          rec.Index,
		UserMessage:    rec.UserMessage,
		DisplayContent: rec.DisplayContent,
		MemoryContent:  rec.MemoryContent,
		Embedding:      rec.Embedding,
		CreatedAt:      rec.Timestamp,
	})
	if err != nil {
		// the answer stands; the turn is lost on the next reload
		logger.Error().Err(err).Msg("failed to persist turn")
	}

	needTitle := !e.titled
	e.titled = true

	m.release(sessionID)
	out <- Outcome{Result: res}

	if needTitle {
		m.title(context.WithoutCancel(ctx), sessionID, query)
	}
}

func (m *Manager) title(ctx context.Context, sessionID, query string) {
	title := m.titler.Title(ctx, query)
	if err := m.repo.UpdateTitle(ctx, sessionID, title); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("failed to store session title")
	}
}

func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	cancel, ok := m.active[sessionID]
	delete(m.active, sessionID)
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// hydrate returns the live memory of a session, loading it from the repository
// when it is not cached. Unknown sessions are created.
func (m *Manager) hydrate(ctx context.Context, sessionID string) (*entry, error) {
	if v, ok := m.sessions.Get(sessionID); ok {
		e := v.(*entry)
		m.sessions.SetDefault(sessionID, e)
		return e, nil
	}

	s, err := m.repo.GetSession(ctx, sessionID)
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		if s, err = m.repo.CreateSession(ctx, sessionID, ""); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	turns, err := m.repo.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	records := make([]core.MemoryRecord, len(turns))
	for i, t := range turns {
		records[i] = t.MemoryRecord()
	}

	e := &entry{mem: memory.New(m.embedder), titled: s.Title != ""}
	e.mem.Load(ctx, records)
	m.sessions.SetDefault(sessionID, e)

	log.FromCtx(ctx).Debug().Str("session_id", sessionID).Int("turns", len(turns)).Msg("session hydrated")
	return e, nil
}

func (m *Manager) Create(ctx context.Context) (core.Session, error) {
	return m.repo.CreateSession(ctx, uuid.NewString(), "")
}

func (m *Manager) Get(ctx context.Context, sessionID string) (core.Session, error) {
	return m.repo.GetSession(ctx, sessionID)
}

func (m *Manager) List(ctx context.Context) ([]core.Session, error) {
	return m.repo.ListSessions(ctx)
}

// History returns the persisted turns of a session.
func (m *Manager) History(ctx context.Context, sessionID string) ([]core.TurnRecord, error) {
	return m.repo.LoadSession(ctx, sessionID)
}

// Delete removes a session. A session with a run in flight cannot be deleted.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	if m.Busy(sessionID) {
		return fmt.Errorf("session %q: %w", sessionID, core.ErrSessionBusy)
	}
	m.sessions.Delete(sessionID)
	return m.repo.DeleteSession(ctx, sessionID)
}

func (m *Manager) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("session manager started")
	return nil
}

// Shutdown cancels every in-flight run and waits for the workers to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, cancel := range m.active {
		cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
