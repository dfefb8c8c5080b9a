package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/examconnect/portal-client/internal/model"
	"github.com/examconnect/portal-client/internal/validate"
)

// ChatHistory returns the most recent chat messages, oldest first.
func (c *Client) ChatHistory(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	var msgs []model.ChatMessage
	path := "/api/chat/messages?limit=" + strconv.Itoa(limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendChatMessage inserts one chat row. Delivery to other participants
// happens through the realtime channel, not through this call.
func (c *Client) SendChatMessage(ctx context.Context, content string) error {
	req := model.SendMessageRequest{Content: content}
	if fields := validate.Struct(&req); fields != nil {
		return fmt.Errorf("invalid chat message: %v", fields)
	}
	return c.do(ctx, http.MethodPost, "/api/chat/messages", req, nil)
}

// ListLiveClasses returns the currently active live classes.
func (c *Client) ListLiveClasses(ctx context.Context) ([]model.LiveClass, error) {
	var classes []model.LiveClass
	if err := c.do(ctx, http.MethodGet, "/api/live-classes", nil, &classes); err != nil {
		return nil, err
	}
	return classes, nil
}

// StartLiveClass opens a live class row and returns it.
func (c *Client) StartLiveClass(ctx context.Context, req model.StartClassRequest) (*model.LiveClass, error) {
	if fields := validate.Struct(&req); fields != nil {
		return nil, fmt.Errorf("invalid live class payload: %v", fields)
	}
	var class model.LiveClass
	if err := c.do(ctx, http.MethodPost, "/api/live-classes", req, &class); err != nil {
		return nil, err
	}
	return &class, nil
}

// EndLiveClass marks a live class inactive.
func (c *Client) EndLiveClass(ctx context.Context, classID string) error {
	return c.do(ctx, http.MethodPost, "/api/live-classes/"+classID+"/end", nil, nil)
}
