package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"analytics-ai-core/internal/domain"
	"analytics-ai-core/internal/domain/model"
)

type stubSessions struct {
	result *model.AnalysisResult
	err    error
	calls  int
}

func (s *stubSessions) StartSession(context.Context, model.Document) (*model.ConversationContext, *model.AnalysisResult, error) {
	return nil, nil, errors.New("not used")
}

func (s *stubSessions) ContinueSession(context.Context, string, string) (*model.AnalysisResult, error) {
	return nil, errors.New("not used")
}

func (s *stubSessions) AnalyzeDocument(_ context.Context, doc model.Document) (*model.AnalysisResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubSessions) EndSession(context.Context, string) error { return nil }

type queueRepo struct {
	mu      sync.Mutex
	pending []*model.AnalysisJob
	byID    map[string]*model.AnalysisJob
}

func newQueueRepo(jobs ...*model.AnalysisJob) *queueRepo {
	r := &queueRepo{byID: map[string]*model.AnalysisJob{}}
	for _, j := range jobs {
		r.pending = append(r.pending, j)
		r.byID[j.ID] = j
	}
	return r
}

func (r *queueRepo) Save(_ context.Context, job *model.AnalysisJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.byID[job.ID] = &cp
	return nil
}

func (r *queueRepo) FindByID(_ context.Context, id string) (*model.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *queueRepo) FetchAndMarkProcessing(_ context.Context) (*model.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return nil, domain.ErrNotFound
	}
	job := r.pending[0]
	r.pending = r.pending[1:]
	job.Status = model.AnalysisJobProcessing
	cp := *job
	return &cp, nil
}

type recordingStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func newRecordingStore() *recordingStore { return &recordingStore{docs: map[string][]byte{}} }

func (s *recordingStore) Put(_ context.Context, collection, id string, doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[collection+"/"+id] = b
	return nil
}

func (s *recordingStore) Get(_ context.Context, collection, id string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.docs[collection+"/"+id]
	if !ok {
		return domain.ErrNotFound
	}
	return json.Unmarshal(b, out)
}

func (s *recordingStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, collection+"/"+id)
	return nil
}

func testProcessor(repo *queueRepo, store *recordingStore, sessions *stubSessions) *AnalysisJobProcessor {
	log := zerolog.Nop()
	return NewAnalysisJobProcessor(repo, store, sessions, &log)
}

func TestProcessOneCompletesJobAndStoresResult(t *testing.T) {
	repo := newQueueRepo(&model.AnalysisJob{
		ID:           "job-1",
		Status:       model.AnalysisJobPending,
		DocumentName: "report.csv",
		Document:     []byte("a,b\n1,2"),
	})
	store := newRecordingStore()
	sessions := &stubSessions{result: &model.AnalysisResult{Text: "done", BlocksAttempted: 1}}

	testProcessor(repo, store, sessions).processOne(context.Background())

	if sessions.calls != 1 {
		t.Fatalf("analyze calls = %d, want 1", sessions.calls)
	}
	job, err := repo.FindByID(context.Background(), "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != model.AnalysisJobCompleted || job.ResultID != "job-1" {
		t.Fatalf("job = %+v", job)
	}
	var result model.AnalysisResult
	if err := store.Get(context.Background(), ResultsCollection, "job-1", &result); err != nil {
		t.Fatalf("result missing: %v", err)
	}
	if result.Text != "done" {
		t.Fatalf("result = %+v", result)
	}
}

func TestProcessOneRecordsFailure(t *testing.T) {
	repo := newQueueRepo(&model.AnalysisJob{
		ID:           "job-1",
		Status:       model.AnalysisJobPending,
		DocumentName: "report.csv",
		Document:     []byte("a,b\n1,2"),
	})
	store := newRecordingStore()
	sessions := &stubSessions{err: errors.New("the run blew up")}

	testProcessor(repo, store, sessions).processOne(context.Background())

	job, err := repo.FindByID(context.Background(), "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != model.AnalysisJobFailed {
		t.Fatalf("status = %s", job.Status)
	}
	if job.LastError != "the run blew up" {
		t.Fatalf("last error = %q", job.LastError)
	}
	if len(store.docs) != 0 {
		t.Fatal("failed job must not store a result")
	}
}

func TestProcessOneEmptyQueueIsQuiet(t *testing.T) {
	repo := newQueueRepo()
	store := newRecordingStore()
	sessions := &stubSessions{}

	testProcessor(repo, store, sessions).processOne(context.Background())

	if sessions.calls != 0 {
		t.Fatalf("analyze calls = %d, want 0", sessions.calls)
	}
}

func TestPoolRunsSubmittedTasks(t *testing.T) {
	log := zerolog.Nop()
	p := NewPool(2, &log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var mu sync.Mutex
	done := make(chan struct{})
	ran := 0
	for i := 0; i < 4; i++ {
		err := p.Submit(func(context.Context) error {
			mu.Lock()
			ran++
			if ran == 4 {
				close(done)
			}
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	<-done
	p.Stop()

	if ran != 4 {
		t.Fatalf("ran = %d, want 4", ran)
	}
}
