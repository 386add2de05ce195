package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"analytics-ai-core/internal/domain"
	"analytics-ai-core/internal/domain/model"
	"analytics-ai-core/internal/domain/ports/adapter"
	"analytics-ai-core/internal/domain/ports/repository"
	"analytics-ai-core/internal/extract"
	"analytics-ai-core/internal/infra/logging"
	"analytics-ai-core/internal/infra/metrics"
)

// Compile-time check
var _ SessionUseCase = (*sessionUC)(nil)

// SessionUseCase is the surface the UI layer calls. A conversation is
// one document plus any number of follow-up questions; the document is
// uploaded exactly once, on the first turn.
type SessionUseCase interface {
	StartSession(ctx context.Context, doc model.Document) (*model.ConversationContext, *model.AnalysisResult, error)
	ContinueSession(ctx context.Context, conversationID, question string) (*model.AnalysisResult, error)
	AnalyzeDocument(ctx context.Context, doc model.Document) (*model.AnalysisResult, error)
	EndSession(ctx context.Context, conversationID string) error
}

type sessionUC struct {
	convs        repository.ConversationRepository
	api          adapter.AssistantAPI
	instructions string
	pollInterval time.Duration
	maxPoll      int
	log          *zerolog.Logger

	// Serializes turns per conversation: the remote service allows one
	// run in flight per thread, and the orchestrator treats concurrent
	// submission as a caller error.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewSessionUseCase(
	convs repository.ConversationRepository,
	api adapter.AssistantAPI,
	instructions string,
	pollInterval time.Duration,
	maxPollAttempts int,
	log *zerolog.Logger,
) *sessionUC {
	if strings.TrimSpace(instructions) == "" {
		instructions = DefaultInstructions
	}
	return &sessionUC{
		convs:        convs,
		api:          api,
		instructions: instructions,
		pollInterval: pollInterval,
		maxPoll:      maxPollAttempts,
		log:          log,
		inFlight:     map[string]struct{}{},
	}
}

// newOrchestrator hands every request its own orchestrator instance;
// nothing mutable is shared between concurrent conversations.
func (s *sessionUC) newOrchestrator() *RunOrchestrator {
	return NewRunOrchestrator(s.api, s.pollInterval, s.maxPoll, s.log)
}

func (s *sessionUC) StartSession(ctx context.Context, doc model.Document) (*model.ConversationContext, *model.AnalysisResult, error) {
	if len(doc.Content) == 0 {
		return nil, nil, fmt.Errorf("%w: empty document", domain.ErrInvalidArgument)
	}
	if doc.Name == "" {
		doc.Name = "document.txt"
	}

	conv := &model.ConversationContext{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	ctx = logging.WithConversationID(ctx, conv.ID)
	defer logging.TraceDuration(logging.With(ctx, s.log), "SessionUC.StartSession")()

	_, output, err := s.newOrchestrator().Execute(ctx, RunRequest{
		Conversation:  conv,
		AssistantName: DefaultAssistantName,
		Instructions:  s.instructions,
		Prompt:        initialAnalysisPrompt(doc.Name),
		Document:      &doc,
	})
	if err != nil {
		s.cleanupRemote(conv)
		return nil, nil, err
	}

	if err := s.convs.Save(ctx, conv); err != nil {
		return nil, nil, fmt.Errorf("save conversation: %w", err)
	}
	return conv, s.extractResult(output), nil
}

func (s *sessionUC) ContinueSession(ctx context.Context, conversationID, question string) (*model.AnalysisResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidArgument)
	}

	if !s.acquire(conversationID) {
		return nil, domain.ErrConversationBusy
	}
	defer s.release(conversationID)

	ctx = logging.WithConversationID(ctx, conversationID)
	defer logging.TraceDuration(logging.With(ctx, s.log), "SessionUC.ContinueSession")()

	conv, err := s.convs.Find(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	// No document on follow-up turns: the file is already bound to the
	// thread from the first turn, so re-uploading would be wasteful and
	// semantically wrong.
	_, output, err := s.newOrchestrator().Execute(ctx, RunRequest{
		Conversation:  conv,
		AssistantName: DefaultAssistantName,
		Instructions:  s.instructions,
		Prompt:        followUpPrompt(question),
	})
	if err != nil {
		return nil, err
	}

	if err := s.convs.Extend(ctx, conversationID); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("could not extend conversation ttl")
	}
	return s.extractResult(output), nil
}

// AnalyzeDocument is the one-shot path: run the initial analysis and
// tear the remote resources down again instead of keeping a session.
func (s *sessionUC) AnalyzeDocument(ctx context.Context, doc model.Document) (*model.AnalysisResult, error) {
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrInvalidArgument)
	}
	if doc.Name == "" {
		doc.Name = "document.txt"
	}

	conv := &model.ConversationContext{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	defer s.cleanupRemote(conv)

	_, output, err := s.newOrchestrator().Execute(ctx, RunRequest{
		Conversation:  conv,
		AssistantName: DefaultAssistantName,
		Instructions:  s.instructions,
		Prompt:        initialAnalysisPrompt(doc.Name),
		Document:      &doc,
	})
	if err != nil {
		return nil, err
	}
	return s.extractResult(output), nil
}

func (s *sessionUC) EndSession(ctx context.Context, conversationID string) error {
	conv, err := s.convs.Find(ctx, conversationID)
	if err != nil {
		return err
	}
	s.cleanupRemote(conv)
	return s.convs.Delete(ctx, conversationID)
}

func (s *sessionUC) extractResult(raw string) *model.AnalysisResult {
	charts, attempted := extract.ParseCharts(raw)
	metrics.ObserveChartBlocks(attempted, len(charts))
	return &model.AnalysisResult{
		Text:            extract.Sanitize(raw),
		Charts:          charts,
		BlocksAttempted: attempted,
	}
}

// cleanupRemote tears down thread, file and assistant best-effort.
// Failures are logged, never surfaced: cleanup problems must not mask
// the primary result.
func (s *sessionUC) cleanupRemote(conv *model.ConversationContext) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if conv.ThreadID != "" {
		if err := s.api.DeleteThread(ctx, conv.ThreadID); err != nil {
			s.log.Warn().Err(err).Str("thread_id", conv.ThreadID).Msg("thread cleanup failed")
		}
	}
	if conv.FileID != "" {
		if err := s.api.DeleteFile(ctx, conv.FileID); err != nil {
			s.log.Warn().Err(err).Str("file_id", conv.FileID).Msg("file cleanup failed")
		}
	}
	if conv.AssistantID != "" {
		if err := s.api.DeleteAssistant(ctx, conv.AssistantID); err != nil {
			s.log.Warn().Err(err).Str("assistant_id", conv.AssistantID).Msg("assistant cleanup failed")
		}
	}
}

func (s *sessionUC) acquire(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[conversationID]; busy {
		return false
	}
	s.inFlight[conversationID] = struct{}{}
	return true
}

func (s *sessionUC) release(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, conversationID)
}
