package chat

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/examconnect/portal-client/internal/api"
	"github.com/examconnect/portal-client/internal/model"
	"github.com/examconnect/portal-client/internal/realtime"
)

// Topic is the realtime topic carrying group chat inserts.
const Topic = "public:group_messages"

// Service is the global group chat: history and sends go through the portal
// API; new messages arrive over the realtime channel.
type Service struct {
	api *api.Client
	rt  *realtime.Client
	log zerolog.Logger
}

// NewService wires the chat service.
func NewService(client *api.Client, rt *realtime.Client, log zerolog.Logger) *Service {
	return &Service{
		api: client,
		rt:  rt,
		log: log.With().Str("component", "chat").Logger(),
	}
}

// History returns the latest messages, oldest first.
func (s *Service) History(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	return s.api.ChatHistory(ctx, limit)
}

// Send posts one message. The sender sees their own message come back over
// the subscription like everyone else's.
func (s *Service) Send(ctx context.Context, content string) error {
	return s.api.SendChatMessage(ctx, content)
}

// Subscribe streams incoming messages into fn until ctx is cancelled or the
// channel fails. Rows that do not decode as messages are dropped.
func (s *Service) Subscribe(ctx context.Context, fn func(model.ChatMessage)) error {
	return s.rt.Subscribe(ctx, Topic, func(row realtime.Row) {
		if row.Event != realtime.EventInsert {
			return
		}
		var msg model.ChatMessage
		if err := json.Unmarshal(row.Payload, &msg); err != nil {
			s.log.Warn().Err(err).Msg("Undecodable chat row")
			return
		}
		fn(msg)
	})
}
