package adapter

import "context"

// RunStatus is the remote service's own lifecycle vocabulary for a run.
type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunCancelled  RunStatus = "cancelled"
	RunExpired    RunStatus = "expired"
)

// RunInfo is one poll's view of a run.
type RunInfo struct {
	ID        string
	Status    RunStatus
	LastError string
}

// ThreadMessage is one turn inside a thread, flattened to plain text.
type ThreadMessage struct {
	ID        string
	Role      string // "user" | "assistant"
	Text      string
	CreatedAt int64
}

// AssistantAPI is the port for the remote assistant service: four
// resource families (assistants, files, threads+messages, runs), each
// call carrying the service's key header and pinned API version.
// Deletes and cancels are best-effort cleanup surfaces.
type AssistantAPI interface {
	CreateAssistant(ctx context.Context, name, instructions string) (string, error)
	DeleteAssistant(ctx context.Context, assistantID string) error

	UploadFile(ctx context.Context, filename string, content []byte) (string, error)
	DeleteFile(ctx context.Context, fileID string) error

	CreateThread(ctx context.Context) (string, error)
	DeleteThread(ctx context.Context, threadID string) error

	CreateMessage(ctx context.Context, threadID, content string, fileIDs []string) (string, error)
	ListMessages(ctx context.Context, threadID string, limit int) ([]ThreadMessage, error)

	CreateRun(ctx context.Context, threadID, assistantID string) (string, error)
	GetRun(ctx context.Context, threadID, runID string) (RunInfo, error)
	CancelRun(ctx context.Context, threadID, runID string) error

	// EstimateTokens returns a best-effort prompt token count for text
	// (used for logging and metrics before submission, never billing).
	EstimateTokens(text string) int
}
