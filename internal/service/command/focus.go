package command

import "sync"

// Focus remembers which session each chat is talking to.
// A chat without an explicit choice uses a session named after the chat.
type Focus struct {
	mu      sync.RWMutex
	current map[string]string
}

func NewFocus() *Focus {
	return &Focus{current: make(map[string]string)}
}

func (f *Focus) Current(chatID string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if id, ok := f.current[chatID]; ok {
		return id
	}
	return chatID
}

func (f *Focus) Switch(chatID, sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sessionID == "" || sessionID == chatID {
		delete(f.current, chatID)
		return
	}
	f.current[chatID] = sessionID
}
