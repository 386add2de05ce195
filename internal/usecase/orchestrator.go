package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"analytics-ai-core/internal/domain"
	"analytics-ai-core/internal/domain/model"
	"analytics-ai-core/internal/domain/ports/adapter"
	"analytics-ai-core/internal/infra/metrics"
)

const (
	defaultPollInterval    = 5 * time.Second
	defaultMaxPollAttempts = 60
)

// RunRequest describes one analytical turn. Document is set only on
// the turn that introduces a new document; later turns ride on the
// file already bound to the thread.
type RunRequest struct {
	Conversation  *model.ConversationContext
	AssistantName string
	Instructions  string
	Prompt        string
	Document      *model.Document
}

// RunOrchestrator drives a single request through the remote service:
// ensure assistant, file and thread, post the message, create the run,
// poll to a terminal state, fetch the reply.
//
// Precondition: no two runs may be in flight on the same thread. The
// orchestrator does not defend against concurrent submission; callers
// serialize turns per conversation.
type RunOrchestrator struct {
	api             adapter.AssistantAPI
	pollInterval    time.Duration
	maxPollAttempts int
	sleep           func(ctx context.Context, d time.Duration) error
	log             *zerolog.Logger
}

func NewRunOrchestrator(api adapter.AssistantAPI, pollInterval time.Duration, maxPollAttempts int, log *zerolog.Logger) *RunOrchestrator {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if maxPollAttempts <= 0 {
		maxPollAttempts = defaultMaxPollAttempts
	}
	return &RunOrchestrator{
		api:             api,
		pollInterval:    pollInterval,
		maxPollAttempts: maxPollAttempts,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
		log: log,
	}
}

// WithSleep swaps the delay primitive so tests can poll instantaneously.
func (o *RunOrchestrator) WithSleep(fn func(ctx context.Context, d time.Duration) error) *RunOrchestrator {
	o.sleep = fn
	return o
}

// Execute runs one request to a terminal state and returns the raw text
// of the latest assistant message. The conversation context is filled
// in place as remote resources get created.
func (o *RunOrchestrator) Execute(ctx context.Context, req RunRequest) (*model.RemoteJob, string, error) {
	conv := req.Conversation
	job := &model.RemoteJob{
		ID:        ulid.Make().String(),
		Status:    model.JobCreated,
		CreatedAt: time.Now(),
	}

	if err := o.submit(ctx, job, req); err != nil {
		o.finish(job, model.JobFailed, err.Error())
		return job, "", err
	}

	output, err := o.poll(ctx, job, conv.ThreadID)
	if err != nil {
		return job, "", err
	}
	return job, output, nil
}

func (o *RunOrchestrator) submit(ctx context.Context, job *model.RemoteJob, req RunRequest) error {
	conv := req.Conversation

	if conv.AssistantID == "" {
		id, err := o.api.CreateAssistant(ctx, req.AssistantName, req.Instructions)
		if err != nil {
			return fmt.Errorf("create assistant: %w", err)
		}
		conv.AssistantID = id
	}
	job.AssistantID = conv.AssistantID

	// Upload exactly once per document: the file stays bound to the
	// thread for the conversation's whole lifetime.
	var attach []string
	if req.Document != nil && conv.FileID == "" {
		id, err := o.api.UploadFile(ctx, req.Document.Name, req.Document.Content)
		if err != nil {
			return fmt.Errorf("upload document: %w", err)
		}
		conv.FileID = id
		attach = []string{id}
	}

	if conv.ThreadID == "" {
		id, err := o.api.CreateThread(ctx)
		if err != nil {
			return fmt.Errorf("create thread: %w", err)
		}
		conv.ThreadID = id
	}
	job.ThreadID = conv.ThreadID

	tokens := o.api.EstimateTokens(req.Prompt)
	metrics.AddEstimatedTokens(tokens)
	o.log.Debug().Str("job_id", job.ID).Int("prompt_tokens_est", tokens).Msg("posting message")

	if _, err := o.api.CreateMessage(ctx, conv.ThreadID, req.Prompt, attach); err != nil {
		return fmt.Errorf("post message: %w", err)
	}

	runID, err := o.api.CreateRun(ctx, conv.ThreadID, conv.AssistantID)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	job.RunID = runID
	job.Status = model.JobSubmitted
	return nil
}

// poll sleeps a fixed interval between status fetches and stops at the
// first terminal state or at the attempt bound, whichever comes first.
func (o *RunOrchestrator) poll(ctx context.Context, job *model.RemoteJob, threadID string) (string, error) {
	job.Status = model.JobPolling

	for attempt := 0; attempt < o.maxPollAttempts; attempt++ {
		if err := o.sleep(ctx, o.pollInterval); err != nil {
			o.cancelBestEffort(job, threadID)
			o.finish(job, model.JobFailed, err.Error())
			return "", fmt.Errorf("run abandoned: %w", err)
		}

		info, err := o.api.GetRun(ctx, threadID, job.RunID)
		if err != nil {
			o.finish(job, model.JobFailed, err.Error())
			return "", fmt.Errorf("fetch run status: %w", err)
		}

		switch info.Status {
		case adapter.RunQueued, adapter.RunInProgress:
			continue
		case adapter.RunCompleted:
			output, err := o.latestAssistantText(ctx, threadID)
			if err != nil {
				o.finish(job, model.JobFailed, err.Error())
				return "", err
			}
			o.finish(job, model.JobCompleted, "")
			return output, nil
		default:
			// failed, cancelled, expired: surface the remote-supplied
			// reason verbatim, with a hint when rate limiting caused it.
			reason := info.LastError
			if reason == "" {
				reason = string(info.Status)
			}
			o.finish(job, model.JobFailed, reason)
			if strings.Contains(strings.ToLower(reason), "rate") {
				return "", fmt.Errorf("%w: %s (the service is throttling requests, try again shortly)", domain.ErrRunFailed, reason)
			}
			return "", fmt.Errorf("%w: %s", domain.ErrRunFailed, reason)
		}
	}

	o.cancelBestEffort(job, threadID)
	o.finish(job, model.JobTimedOut, "polling bound exceeded")
	elapsed := time.Duration(o.maxPollAttempts) * o.pollInterval
	return "", fmt.Errorf("%w after %s", domain.ErrPollTimeout, elapsed)
}

func (o *RunOrchestrator) latestAssistantText(ctx context.Context, threadID string) (string, error) {
	msgs, err := o.api.ListMessages(ctx, threadID, 20)
	if err != nil {
		return "", fmt.Errorf("fetch messages: %w", err)
	}
	// The service returns newest first.
	for _, m := range msgs {
		if m.Role == "assistant" && m.Text != "" {
			return m.Text, nil
		}
	}
	return "", errors.New("completed run produced no assistant message")
}

// cancelBestEffort issues one remote cancel for an abandoned run.
// Failures are logged and dropped; cleanup never masks the primary
// outcome.
func (o *RunOrchestrator) cancelBestEffort(job *model.RemoteJob, threadID string) {
	if job.RunID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.api.CancelRun(ctx, threadID, job.RunID); err != nil {
		o.log.Warn().Err(err).Str("run_id", job.RunID).Msg("best-effort run cancel failed")
	}
}

func (o *RunOrchestrator) finish(job *model.RemoteJob, state model.JobState, lastError string) {
	job.Status = state
	job.LastError = lastError
	metrics.IncRemoteJob(string(state))
	evt := o.log.Info()
	if state != model.JobCompleted {
		evt = o.log.Warn()
	}
	evt.Str("job_id", job.ID).Str("run_id", job.RunID).Str("state", string(state)).Msg("remote job finished")
}
