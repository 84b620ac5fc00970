package fanout

import (
	"context"
	"sync"

	"github.com/protocol-chat/notify-backend/internal/models"
	"github.com/protocol-chat/notify-backend/internal/push"
	"github.com/protocol-chat/notify-backend/internal/store"
)

type fakeConversations struct {
	conv *models.Conversation
	msg  *models.Message
}

func (f *fakeConversations) Get(_ context.Context, conversationID string) (*models.Conversation, error) {
	if f.conv == nil || f.conv.ID != conversationID {
		return nil, nil
	}
	return f.conv, nil
}

func (f *fakeConversations) GetMessage(_ context.Context, _, _ string) (*models.Message, error) {
	return f.msg, nil
}

type fakeProfiles struct {
	profiles map[string]*models.Profile
}

func (f *fakeProfiles) Get(_ context.Context, userID string) (*models.Profile, error) {
	return f.profiles[userID], nil
}

type fakePresence struct {
	presence map[string]models.Presence
}

func (f *fakePresence) Presence(_ context.Context, userID string) (models.Presence, error) {
	return f.presence[userID], nil
}

type fakeTokens struct {
	mu        sync.Mutex
	tokens    map[string][]string
	readErr   map[string]error
	removeErr map[string]error
	removals  []Removal
}

func (f *fakeTokens) Tokens(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr[userID]; err != nil {
		return nil, err
	}
	out := make([]string, len(f.tokens[userID]))
	copy(out, f.tokens[userID])
	return out, nil
}

func (f *fakeTokens) RemoveToken(_ context.Context, userID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.removeErr[token]; err != nil {
		return err
	}
	f.removals = append(f.removals, Removal{UserID: userID, Token: token})
	var kept []string
	for _, t := range f.tokens[userID] {
		if t != token {
			kept = append(kept, t)
		}
	}
	f.tokens[userID] = kept
	return nil
}

type fakeAudit struct {
	mu         sync.Mutex
	entries    []store.AuditEntry
	deliveries map[string][]map[string]any
}

func newFakeAudit() *fakeAudit {
	return &fakeAudit{deliveries: make(map[string][]map[string]any)}
}

func (f *fakeAudit) Record(_ context.Context, entry store.AuditEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeAudit) RecordDelivery(_ context.Context, userID string, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries[userID] = append(f.deliveries[userID], payload)
}

func (f *fakeAudit) notes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries {
		if e.Note != "" {
			out = append(out, e.Note)
		}
	}
	return out
}

func (f *fakeAudit) hasNote(note string) bool {
	for _, n := range f.notes() {
		if n == note {
			return true
		}
	}
	return false
}

type fakeProvider struct {
	mu      sync.Mutex
	calls   []*push.MulticastMessage
	respond func(msg *push.MulticastMessage) (*push.BatchResponse, error)
}

func (p *fakeProvider) SendMulticast(_ context.Context, msg *push.MulticastMessage) (*push.BatchResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, msg)
	p.mu.Unlock()

	if p.respond != nil {
		return p.respond(msg)
	}

	resp := &push.BatchResponse{
		SuccessCount: len(msg.Tokens),
		Responses:    make([]push.SendResult, len(msg.Tokens)),
	}
	for i := range resp.Responses {
		resp.Responses[i].Success = true
	}
	return resp, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProvider) sentTokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, call := range p.calls {
		out = append(out, call.Tokens...)
	}
	return out
}
