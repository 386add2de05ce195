package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"analytics-ai-core/internal/domain"
	"analytics-ai-core/internal/domain/model"
)

type documentRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type messageRequest struct {
	Question string `json:"question"`
}

type analysisResponse struct {
	ID        string                `json:"id"`
	Status    string                `json:"status"`
	LastError string                `json:"last_error,omitempty"`
	Result    *model.AnalysisResult `json:"result,omitempty"`
}

type conversationResponse struct {
	ConversationID string            `json:"conversation_id"`
	Text           string            `json:"text"`
	Charts         []model.ChartSpec `json:"charts"`
}

func (s *Server) createAnalysis(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		http.Error(w, "name and content are required", http.StatusBadRequest)
		return
	}

	job := &model.AnalysisJob{
		Status:       model.AnalysisJobPending,
		DocumentName: req.Name,
		Document:     []byte(req.Content),
	}
	if err := s.jobs.Save(r.Context(), job); err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusAccepted, analysisResponse{ID: job.ID, Status: string(job.Status)})
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.jobs.FindByID(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}

	resp := analysisResponse{ID: job.ID, Status: string(job.Status), LastError: job.LastError}
	if job.Status == model.AnalysisJobCompleted && job.ResultID != "" {
		var result model.AnalysisResult
		if err := s.results.Get(r.Context(), "analyses", job.ResultID, &result); err == nil {
			resp.Result = &result
		}
	}
	s.respond(w, http.StatusOK, resp)
}

func (s *Server) startConversation(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		http.Error(w, "name and content are required", http.StatusBadRequest)
		return
	}

	conv, result, err := s.sessions.StartSession(r.Context(), model.Document{
		Name:    req.Name,
		Content: []byte(req.Content),
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusCreated, conversationResponse{
		ConversationID: conv.ID,
		Text:           result.Text,
		Charts:         result.Charts,
	})
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	result, err := s.sessions.ContinueSession(r.Context(), id, req.Question)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, conversationResponse{
		ConversationID: id,
		Text:           result.Text,
		Charts:         result.Charts,
	})
}

func (s *Server) endConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.EndSession(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrConversationBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrPollTimeout):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	case errors.Is(err, domain.ErrRunFailed):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		s.log.Error().Err(err).Msg("internal error")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
