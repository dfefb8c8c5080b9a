package liveclass

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/examconnect/portal-client/internal/api"
	"github.com/examconnect/portal-client/internal/auth"
	"github.com/examconnect/portal-client/internal/model"
	"github.com/examconnect/portal-client/internal/realtime"
)

// Topic is the realtime topic carrying live-class row changes.
const Topic = "public:live_classes"

// ErrTeacherOnly is returned when a non-teacher tries to start a class.
var ErrTeacherOnly = fmt.Errorf("only teachers can start a live class")

// Service manages live classes. The conferencing rooms themselves are
// external: the service only tracks rows and builds join URLs.
type Service struct {
	api         *api.Client
	rt          *realtime.Client
	session     *auth.Session
	meetBaseURL string
	log         zerolog.Logger
}

// NewService wires the live-class service.
func NewService(client *api.Client, rt *realtime.Client, session *auth.Session, meetBaseURL string, log zerolog.Logger) *Service {
	return &Service{
		api:         client,
		rt:          rt,
		session:     session,
		meetBaseURL: meetBaseURL,
		log:         log.With().Str("component", "live_class").Logger(),
	}
}

// List returns the currently active classes.
func (s *Service) List(ctx context.Context) ([]model.LiveClass, error) {
	return s.api.ListLiveClasses(ctx)
}

// Start opens a class under a fresh room id and returns the row. Teacher
// role required.
func (s *Service) Start(ctx context.Context, title string) (*model.LiveClass, error) {
	profile := s.session.Profile()
	if profile == nil || profile.Role != model.RoleTeacher {
		return nil, ErrTeacherOnly
	}

	roomID := fmt.Sprintf("examconnect-%s-%d", profile.ID, nowMillis())
	class, err := s.api.StartLiveClass(ctx, model.StartClassRequest{Title: title, RoomID: roomID})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("room_id", roomID).Str("title", title).Msg("Live class started")
	return class, nil
}

// End marks a class inactive.
func (s *Service) End(ctx context.Context, classID string) error {
	return s.api.EndLiveClass(ctx, classID)
}

// JoinURL returns the conferencing URL for a class room.
func (s *Service) JoinURL(class model.LiveClass) string {
	return s.meetBaseURL + "/" + class.RoomID
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// Watch invokes fn on every live-class row change until ctx is cancelled or
// the channel fails. The original UI refreshes its list on any event, so fn
// receives no payload, just the nudge.
func (s *Service) Watch(ctx context.Context, fn func()) error {
	return s.rt.Subscribe(ctx, Topic, func(realtime.Row) { fn() })
}
