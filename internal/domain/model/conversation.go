package model

import "time"

// Document is the raw user-supplied input to one analysis conversation.
type Document struct {
	Name    string
	Content []byte
}

// ConversationContext is the identity that makes follow-up questions
// behave as one continuing conversation: the remote assistant, the
// thread, and the file bound to that thread on the first turn.
// It is created once per document and read-shared by later turns;
// only one turn is ever in flight per conversation.
type ConversationContext struct {
	ID          string    `json:"id"`
	AssistantID string    `json:"assistant_id"`
	ThreadID    string    `json:"thread_id"`
	FileID      string    `json:"file_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AnalysisResult is what one completed turn yields back to the caller:
// the cleaned display text plus every chart recovered from the output.
type AnalysisResult struct {
	Text            string      `json:"text"`
	Charts          []ChartSpec `json:"charts"`
	BlocksAttempted int         `json:"-"`
}
