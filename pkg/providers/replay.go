package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/skaldhq/skald/pkg/contexts"
)

// ReplayModelClient returns scripted replies in order. Used by tests and
// by replay mode, where a recorded run is re-executed without touching the
// real transport.
type ReplayModelClient struct {
	mu sync.Mutex

	// Replies are consumed one per SendRequest call.
	Replies []string
	// Err, when set, is returned by every SendRequest call.
	Err error
	// RejectModels lists model ids SelectModel must refuse.
	RejectModels []string

	next     int
	Requests []string // recorded request contents, in order
	Selected []string // recorded SelectModel calls, in order
}

// SelectModel records the selection. Ids listed in RejectModels fail, so
// tests can exercise the no-silent-fallback rule.
func (c *ReplayModelClient) SelectModel(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rejected := range c.RejectModels {
		if id == rejected {
			return fmt.Errorf("model %q is not configured", id)
		}
	}
	c.Selected = append(c.Selected, id)
	return nil
}

// SendRequest returns the next scripted reply.
func (c *ReplayModelClient) SendRequest(ctx context.Context, role, content string, contextMessages []contexts.Message, opts *RequestOptions) (*ModelResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, content)
	if c.Err != nil {
		return nil, c.Err
	}
	if c.next >= len(c.Replies) {
		return nil, fmt.Errorf("replay exhausted after %d replies", len(c.Replies))
	}
	reply := c.Replies[c.next]
	c.next++
	return &ModelResponse{Reply: reply, Raw: []byte(reply)}, nil
}
