package realtime

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/examconnect/portal-client/internal/api"
)

var (
	writeDeadline = 10 * time.Second
	readDeadline  = 5 * time.Minute
	pingEvery     = 2 * time.Minute
)

// Client subscribes to the portal's realtime channel over WebSocket.
// One attempt per subscription, no automatic reconnect: a dropped channel is
// surfaced to the caller.
type Client struct {
	baseURL string
	tokens  api.TokenSource
	log     zerolog.Logger
}

// New creates a realtime client. baseURL is the ws(s) channel root
// (".../realtime/v1").
func New(baseURL string, tokens api.TokenSource, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		log:     log.With().Str("component", "realtime").Logger(),
	}
}

// Subscribe streams change events for topic into fn until ctx is cancelled
// or the channel fails. It blocks; run it in a goroutine.
func (c *Client) Subscribe(ctx context.Context, topic string, fn func(Row)) error {
	endpoint := c.baseURL + "/websocket"
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			endpoint += "?token=" + url.QueryEscape(token)
		}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial realtime channel: %w", err)
	}

	// Unblock the read loop when the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteJSON(SubscribeRequest{Action: ActionSubscribe, Topic: topic}); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	c.log.Info().Str("topic", topic).Msg("Subscribed")

	// Ping on an interval so the read deadline only ever fires on a dead
	// channel, not on a quiet topic. The read loop never writes after the
	// subscribe, so this is the only writer.
	go func() {
		pings := time.NewTicker(pingEvery)
		defer pings.Stop()
		for {
			select {
			case <-done:
				return
			case <-pings.C:
				conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := conn.WriteJSON(PingRequest{Action: ActionPing}); err != nil {
					return
				}
			}
		}
	}()

	for {
		var row Row
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		if err := conn.ReadJSON(&row); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("realtime channel failed: %w", err)
		}

		switch {
		case row.Event == EventError:
			return fmt.Errorf("realtime channel error: %s", row.Error)
		case row.Topic != "" && row.Topic != topic:
			// Not ours.
		case row.IsChange():
			fn(row)
		}
	}
}
