package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"analytics-ai-core/internal/domain"
	"analytics-ai-core/internal/domain/model"
	"analytics-ai-core/internal/domain/ports/adapter"
)

// ---- Fakes ----

// fakeAssistantAPI scripts the remote service: run statuses are served
// in order, and every call is counted.
type fakeAssistantAPI struct {
	mu sync.Mutex

	runStatuses []adapter.RunInfo
	statusIdx   int
	reply       string

	createAssistantCalls int
	uploadCalls          int
	createThreadCalls    int
	createMessageCalls   int
	createRunCalls       int
	getRunCalls          int
	cancelRunCalls       int
	deleteThreadCalls    int
	deleteFileCalls      int
	deleteAssistantCalls int

	lastMessageFileIDs []string
}

func newFakeAssistantAPI(reply string, statuses ...adapter.RunInfo) *fakeAssistantAPI {
	return &fakeAssistantAPI{reply: reply, runStatuses: statuses}
}

func (f *fakeAssistantAPI) CreateAssistant(ctx context.Context, name, instructions string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createAssistantCalls++
	return "asst_1", nil
}

func (f *fakeAssistantAPI) DeleteAssistant(ctx context.Context, assistantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteAssistantCalls++
	return nil
}

func (f *fakeAssistantAPI) UploadFile(ctx context.Context, filename string, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCalls++
	return "file_1", nil
}

func (f *fakeAssistantAPI) DeleteFile(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteFileCalls++
	return nil
}

func (f *fakeAssistantAPI) CreateThread(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createThreadCalls++
	return "thread_1", nil
}

func (f *fakeAssistantAPI) DeleteThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteThreadCalls++
	return nil
}

func (f *fakeAssistantAPI) CreateMessage(ctx context.Context, threadID, content string, fileIDs []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createMessageCalls++
	f.lastMessageFileIDs = fileIDs
	return "msg_1", nil
}

func (f *fakeAssistantAPI) ListMessages(ctx context.Context, threadID string, limit int) ([]adapter.ThreadMessage, error) {
	return []adapter.ThreadMessage{
		{ID: "msg_2", Role: "assistant", Text: f.reply, CreatedAt: 2},
		{ID: "msg_1", Role: "user", Text: "question", CreatedAt: 1},
	}, nil
}

func (f *fakeAssistantAPI) CreateRun(ctx context.Context, threadID, assistantID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createRunCalls++
	f.statusIdx = 0
	return "run_1", nil
}

func (f *fakeAssistantAPI) GetRun(ctx context.Context, threadID, runID string) (adapter.RunInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getRunCalls++
	if len(f.runStatuses) == 0 {
		return adapter.RunInfo{ID: runID, Status: adapter.RunCompleted}, nil
	}
	idx := f.statusIdx
	if idx >= len(f.runStatuses) {
		idx = len(f.runStatuses) - 1
	}
	f.statusIdx++
	info := f.runStatuses[idx]
	if info.ID == "" {
		info.ID = runID
	}
	return info, nil
}

func (f *fakeAssistantAPI) CancelRun(ctx context.Context, threadID, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelRunCalls++
	return nil
}

func (f *fakeAssistantAPI) EstimateTokens(text string) int { return len(text) / 4 }

// memConvRepo is an in-memory conversation repository.
type memConvRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.ConversationContext
	extends int
}

func newMemConvRepo() *memConvRepo {
	return &memConvRepo{byID: map[string]*model.ConversationContext{}}
}

func (m *memConvRepo) Save(ctx context.Context, conv *model.ConversationContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *conv
	m.byID[conv.ID] = &cp
	return nil
}

func (m *memConvRepo) Find(ctx context.Context, id string) (*model.ConversationContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (m *memConvRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memConvRepo) Extend(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return errors.New("missing conversation")
	}
	m.extends++
	return nil
}

// instantSleep makes polling loops run without wall-clock delay.
func instantSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
