package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/skaldhq/skald/pkg/contexts"
)

// HTTPModelClient talks to OpenAI-compatible chat-completion endpoints.
// One client holds every configured model; SelectModel switches between
// them and rejects ids that are not configured.
type HTTPModelClient struct {
	mu       sync.Mutex
	models   map[string]ModelSpec
	selected string
	client   *http.Client
}

// NewHTTPModelClient creates a client for the given model specs with
// defaultID selected. The default must be one of the configured models.
func NewHTTPModelClient(specs []ModelSpec, defaultID string) (*HTTPModelClient, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no models configured")
	}
	models := make(map[string]ModelSpec, len(specs))
	for _, s := range specs {
		models[s.ID] = s
	}
	if defaultID == "" {
		defaultID = specs[0].ID
	}
	if _, ok := models[defaultID]; !ok {
		return nil, fmt.Errorf("default model %q is not configured", defaultID)
	}
	return &HTTPModelClient{
		models:   models,
		selected: defaultID,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// SelectModel switches the active model. Unknown ids are an error, never a
// silent fallback.
func (c *HTTPModelClient) SelectModel(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.models[id]; !ok {
		return fmt.Errorf("model %q is not configured", id)
	}
	c.selected = id
	return nil
}

// SelectedModel returns the id of the active model.
func (c *HTTPModelClient) SelectedModel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// chat wire types (OpenAI chat-completions shape).
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SendRequest sends content with the accumulated context messages to the
// selected model and returns the first choice's reply plus the raw body.
func (c *HTTPModelClient) SendRequest(ctx context.Context, role, content string, contextMessages []contexts.Message, opts *RequestOptions) (*ModelResponse, error) {
	c.mu.Lock()
	spec, ok := c.models[c.selected]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no model selected")
	}

	payload := chatRequest{Model: spec.ID}
	for _, m := range contextMessages {
		payload.Messages = append(payload.Messages, chatMessage{Role: wireRole(m.Role), Content: m.Content})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: wireRole(role), Content: content})
	if opts != nil {
		payload.Temperature = opts.Temperature
		payload.MaxTokens = opts.MaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spec.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if spec.APIKeyEnv != "" {
		if key := os.Getenv(spec.APIKeyEnv); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request to %q: %w", spec.ID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response from %q: %w", spec.ID, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("model %q: %s", spec.ID, msg)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("model %q returned no choices", spec.ID)
	}

	return &ModelResponse{Reply: parsed.Choices[0].Message.Content, Raw: raw}, nil
}

// wireRole maps internal roles onto the chat wire format. The "agent" role
// marks document narrative; transports expect it as user-side content.
func wireRole(role string) string {
	if role == contexts.RoleAgent {
		return contexts.RoleUser
	}
	return role
}
