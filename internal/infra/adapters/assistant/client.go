// Package assistant implements the remote assistant-service port as a
// resource-oriented JSON-over-HTTP client: assistants, files, threads,
// messages and runs. All calls go through the transport layer, which
// owns retries and backoff.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"analytics-ai-core/internal/domain/ports/adapter"
	"analytics-ai-core/internal/infra/metrics"
	"analytics-ai-core/internal/infra/transport"
)

// DefaultAPIVersion is the pinned, known-good service version. Every
// request carries it explicitly; the client never floats.
const DefaultAPIVersion = "2024-05-01-preview"

// Compile-time assurance this client satisfies the port
var _ adapter.AssistantAPI = (*Client)(nil)

type Client struct {
	endpoint   string // e.g. https://myresource.openai.azure.com/openai
	apiKey     string
	apiVersion string
	model      string
	transport  *transport.Client
	tokenizer  *tiktoken.Tiktoken
	log        *zerolog.Logger
}

func NewClient(endpoint, apiKey, apiVersion, model string, tc *transport.Client, log *zerolog.Logger) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("assistant endpoint empty")
	}
	if apiKey == "" {
		return nil, errors.New("assistant api key empty")
	}
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	if model == "" {
		model = "gpt-4o"
	}
	// Token estimation is best-effort: without the encoding we fall
	// back to a bytes/4 heuristic in EstimateTokens.
	tokenizer, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warn().Err(err).Msg("cl100k_base encoding unavailable, falling back to heuristic token counts")
		tokenizer = nil
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		apiVersion: apiVersion,
		model:      model,
		transport:  tc,
		tokenizer:  tokenizer,
		log:        log,
	}, nil
}

func (c *Client) CreateAssistant(ctx context.Context, name, instructions string) (string, error) {
	body := map[string]any{
		"model":        c.model,
		"name":         name,
		"instructions": instructions,
		"tools":        []map[string]string{{"type": "code_interpreter"}},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "create_assistant", "/assistants", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) DeleteAssistant(ctx context.Context, assistantID string) error {
	return c.delete(ctx, "delete_assistant", "/assistants/"+assistantID)
}

func (c *Client) UploadFile(ctx context.Context, filename string, content []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("purpose", "assistants"); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/files", buf.Bytes())
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out struct {
		ID string `json:"id"`
	}
	if err := c.send("upload_file", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.delete(ctx, "delete_file", "/files/"+fileID)
}

func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "create_thread", "/threads", map[string]any{}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	return c.delete(ctx, "delete_thread", "/threads/"+threadID)
}

func (c *Client) CreateMessage(ctx context.Context, threadID, content string, fileIDs []string) (string, error) {
	body := map[string]any{
		"role":    "user",
		"content": content,
	}
	if len(fileIDs) > 0 {
		attachments := make([]map[string]any, 0, len(fileIDs))
		for _, id := range fileIDs {
			attachments = append(attachments, map[string]any{
				"file_id": id,
				"tools":   []map[string]string{{"type": "code_interpreter"}},
			})
		}
		body["attachments"] = attachments
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "create_message", "/threads/"+threadID+"/messages", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) ([]adapter.ThreadMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	path := "/threads/" + threadID + "/messages"
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("limit", strconv.Itoa(limit))
	req.URL.RawQuery = q.Encode()

	var out struct {
		Data []struct {
			ID        string `json:"id"`
			Role      string `json:"role"`
			CreatedAt int64  `json:"created_at"`
			Content   []struct {
				Type string `json:"type"`
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := c.send("list_messages", req, &out); err != nil {
		return nil, err
	}

	msgs := make([]adapter.ThreadMessage, 0, len(out.Data))
	for _, m := range out.Data {
		var text strings.Builder
		for _, part := range m.Content {
			if part.Type == "text" {
				text.WriteString(part.Text.Value)
			}
		}
		msgs = append(msgs, adapter.ThreadMessage{
			ID:        m.ID,
			Role:      m.Role,
			Text:      text.String(),
			CreatedAt: m.CreatedAt,
		})
	}
	return msgs, nil
}

func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]any{"assistant_id": assistantID}
	if err := c.postJSON(ctx, "create_run", "/threads/"+threadID+"/runs", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) GetRun(ctx context.Context, threadID, runID string) (adapter.RunInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil)
	if err != nil {
		return adapter.RunInfo{}, err
	}
	var out struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		LastError *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"last_error"`
	}
	if err := c.send("get_run", req, &out); err != nil {
		return adapter.RunInfo{}, err
	}
	info := adapter.RunInfo{ID: out.ID, Status: adapter.RunStatus(out.Status)}
	if out.LastError != nil {
		info.LastError = strings.TrimSpace(out.LastError.Code + ": " + out.LastError.Message)
	}
	return info, nil
}

func (c *Client) CancelRun(ctx context.Context, threadID, runID string) error {
	var out struct {
		ID string `json:"id"`
	}
	path := "/threads/" + threadID + "/runs/" + runID + "/cancel"
	return c.postJSON(ctx, "cancel_run", path, map[string]any{}, &out)
}

func (c *Client) EstimateTokens(text string) int {
	if c.tokenizer == nil {
		return len(text) / 4
	}
	return len(c.tokenizer.Encode(text, nil, nil))
}

// ---- plumbing ----

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	u := c.endpoint + path + "?api-version=" + url.QueryEscape(c.apiVersion)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("api-key", c.apiKey)
	return req, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, b)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(op, req, out)
}

func (c *Client) delete(ctx context.Context, op, path string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	return c.send(op, req, nil)
}

func (c *Client) send(op string, req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.transport.Do(req)
	metrics.ObserveAssistantCall(op, int(time.Since(start)/time.Millisecond), err == nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
