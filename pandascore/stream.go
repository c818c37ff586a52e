package pandascore

import (
	"context"

	jsoniter "github.com/json-iterator/go"
)

// StreamFeed is a realtime feed kind
type StreamFeed string

const (
	FeedFrames StreamFeed = "frames"
	FeedEvents StreamFeed = "events"
)

// StreamRequest describes a realtime subscription
type StreamRequest struct {
	Path   string
	Params map[string]string
	Feeds  []StreamFeed
}

// Stream subscribes to a realtime feed. Realtime streaming is not supported
// by this client; the call always fails with KindWebSocket.
func (c *Client) Stream(ctx context.Context, req StreamRequest) (<-chan jsoniter.RawMessage, error) {
	c.logger.Debug().Str("path", req.Path).Msg("Realtime stream requested")
	return nil, &APIError{
		Kind:    KindWebSocket,
		Message: "realtime streaming is not supported by this client",
	}
}
