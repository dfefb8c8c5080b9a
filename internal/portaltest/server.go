// Package portaltest provides an in-process stand-in for the Exam Connect
// backend, storage bucket and realtime channel, for use in tests. Call
// counters let tests assert exactly how often a collaborator was hit.
package portaltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/examconnect/portal-client/internal/model"
	"github.com/examconnect/portal-client/internal/realtime"
)

// Token is the bearer token the fake portal accepts.
const Token = "portaltest-token"

// Server is the fake portal.
type Server struct {
	http *httptest.Server

	mu          sync.Mutex
	exams       map[string]model.ExamDefinition
	submitted   map[string]bool
	objects     map[string][]byte
	messages    []model.ChatMessage
	classes     []model.LiveClass
	profile     model.Profile
	subscribers map[string][]*subscriberConn

	// Failure switches.
	FailUpload bool
	FailSubmit bool

	// Interaction counters and captures.
	PutCalls         int
	SubmitCalls      int
	LastSubmission   *model.SubmissionRequest
	LastSubmitExamID string
	LastObjectPath   string
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// subscriberConn serializes writes to one realtime subscriber, which may see
// broadcasts and pong replies from different goroutines.
type subscriberConn struct {
	mu   sync.Mutex
	conn *websocket.Conn

	// Ping requests answered, for tests asserting keepalive traffic.
	pings int
}

func (c *subscriberConn) writeRow(row realtime.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(row)
}

// NewServer starts the fake portal.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		exams:       make(map[string]model.ExamDefinition),
		submitted:   make(map[string]bool),
		objects:     make(map[string][]byte),
		subscribers: make(map[string][]*subscriberConn),
		profile: model.Profile{
			ID:       "student-1",
			Email:    "student@example.com",
			FullName: "Test Student",
			Role:     model.RoleStudent,
		},
	}

	r := gin.New()

	r.POST("/api/auth/login", s.handleLogin)
	r.POST("/api/auth/register", s.handleRegister)

	authed := r.Group("/", s.requireToken)
	{
		authed.GET("/api/auth/me", s.handleMe)
		authed.GET("/api/student/exams", s.handleListExams)
		authed.GET("/api/student/exams/:id", s.handleGetExam)
		authed.POST("/api/student/exams/:id/submit", s.handleSubmit)
		authed.GET("/api/student/dashboard", s.handleDashboard)
		authed.GET("/api/student/results", s.handleResults)
		authed.GET("/api/chat/messages", s.handleChatHistory)
		authed.POST("/api/chat/messages", s.handleChatSend)
		authed.GET("/api/live-classes", s.handleListClasses)
		authed.POST("/api/live-classes", s.handleStartClass)
		authed.POST("/api/live-classes/:id/end", s.handleEndClass)
	}

	r.POST("/storage/v1/object/:bucket/*path", s.handlePut)
	r.GET("/storage/v1/object/public/:bucket/*path", s.handleGetObject)
	r.GET("/realtime/v1/websocket", s.handleRealtime)

	s.http = httptest.NewServer(r)
	return s
}

// Close shuts the fake portal down.
func (s *Server) Close() {
	s.mu.Lock()
	for _, subs := range s.subscribers {
		for _, sub := range subs {
			sub.conn.Close()
		}
	}
	s.subscribers = make(map[string][]*subscriberConn)
	s.mu.Unlock()
	s.http.Close()
}

// URL is the API base URL.
func (s *Server) URL() string { return s.http.URL }

// StorageURL is the storage root.
func (s *Server) StorageURL() string { return s.http.URL + "/storage/v1" }

// RealtimeURL is the ws channel root.
func (s *Server) RealtimeURL() string {
	return "ws" + strings.TrimPrefix(s.http.URL, "http") + "/realtime/v1"
}

// AddExam registers an exam the fake will serve.
func (s *Server) AddExam(def model.ExamDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exams[def.ID] = def
}

// SetProfile overrides the profile the fake authenticates as.
func (s *Server) SetProfile(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

// Object returns a stored object's bytes.
func (s *Server) Object(bucket, path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.objects[bucket+"/"+path]
	return raw, ok
}

// Broadcast pushes one row event to every subscriber of topic.
func (s *Server) Broadcast(topic string, event realtime.Event, payload interface{}) {
	raw, _ := json.Marshal(payload)
	row := realtime.Row{Event: event, Topic: topic, Payload: raw}

	s.mu.Lock()
	subs := append([]*subscriberConn{}, s.subscribers[topic]...)
	s.mu.Unlock()

	for _, sub := range subs {
		_ = sub.writeRow(row)
	}
}

// PingCount returns how many realtime pings the fake has answered.
func (s *Server) PingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, subs := range s.subscribers {
		for _, sub := range subs {
			sub.mu.Lock()
			total += sub.pings
			sub.mu.Unlock()
		}
	}
	return total
}

// ─── Handlers ───────────────────────────────────────────────────────

func (s *Server) requireToken(c *gin.Context) {
	if c.GetHeader("Authorization") != "Bearer "+Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload"})
		return
	}
	if strings.HasSuffix(req.Email, "@invalid.example") {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid email or password"})
		return
	}
	s.mu.Lock()
	profile := s.profile
	s.mu.Unlock()
	c.JSON(http.StatusOK, model.LoginResponse{
		AccessToken: Token,
		TokenType:   "bearer",
		User:        &profile,
	})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Registration successful"})
}

func (s *Server) handleMe(c *gin.Context) {
	s.mu.Lock()
	profile := s.profile
	s.mu.Unlock()
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleListExams(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ExamSummary, 0, len(s.exams))
	for _, def := range s.exams {
		out = append(out, model.ExamSummary{
			ID:               def.ID,
			Title:            def.Title,
			Subject:          def.Subject,
			DurationMinutes:  def.DurationMinutes,
			TotalMarks:       def.TotalMarks,
			Status:           def.Status,
			AlreadySubmitted: s.submitted[def.ID],
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetExam(c *gin.Context) {
	s.mu.Lock()
	def, ok := s.exams[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Exam not found"})
		return
	}
	c.JSON(http.StatusOK, def)
}

func (s *Server) handleSubmit(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.SubmitCalls++
	examID := c.Param("id")

	if s.FailSubmit {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "This exam is not accepting submissions"})
		return
	}
	if _, ok := s.exams[examID]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Exam not found"})
		return
	}

	var sub model.SubmissionRequest
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload"})
		return
	}
	if !strings.Contains(sub.FileURL, ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Submissions must be a PDF file."})
		return
	}

	s.submitted[examID] = true
	s.LastSubmission = &sub
	s.LastSubmitExamID = examID
	c.JSON(http.StatusOK, model.SubmissionResponse{
		Message:      "Exam submitted successfully",
		SubmissionID: uuid.New().String(),
	})
}

func (s *Server) handleDashboard(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	completed := 0
	for _, done := range s.submitted {
		if done {
			completed++
		}
	}
	c.JSON(http.StatusOK, model.StudentDashboard{
		UpcomingExams:    []model.ExamSummary{},
		CompletedExams:   completed,
		TotalSubmissions: completed,
		RecentResults:    []model.Result{},
	})
}

func (s *Server) handleResults(c *gin.Context) {
	c.JSON(http.StatusOK, []model.Result{})
}

func (s *Server) handleChatHistory(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.messages)
}

func (s *Server) handleChatSend(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload"})
		return
	}

	s.mu.Lock()
	msg := model.ChatMessage{
		ID:         uuid.New().String(),
		SenderID:   s.profile.ID,
		SenderName: s.profile.FullName,
		SenderRole: s.profile.Role,
		Content:    req.Content,
		CreatedAt:  time.Now().UTC(),
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.Broadcast("public:group_messages", realtime.EventInsert, msg)
	c.JSON(http.StatusOK, gin.H{"message": "sent"})
}

func (s *Server) handleListClasses(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := make([]model.LiveClass, 0)
	for _, class := range s.classes {
		if class.IsActive {
			active = append(active, class)
		}
	}
	c.JSON(http.StatusOK, active)
}

func (s *Server) handleStartClass(c *gin.Context) {
	var req model.StartClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload"})
		return
	}

	s.mu.Lock()
	class := model.LiveClass{
		ID:        uuid.New().String(),
		TeacherID: s.profile.ID,
		Title:     req.Title,
		RoomID:    req.RoomID,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	s.classes = append(s.classes, class)
	s.mu.Unlock()

	s.Broadcast("public:live_classes", realtime.EventInsert, class)
	c.JSON(http.StatusOK, class)
}

func (s *Server) handleEndClass(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	for i := range s.classes {
		if s.classes[i].ID == id {
			now := time.Now().UTC()
			s.classes[i].IsActive = false
			s.classes[i].EndedAt = &now
		}
	}
	s.mu.Unlock()
	s.Broadcast("public:live_classes", realtime.EventUpdate, gin.H{"id": id})
	c.JSON(http.StatusOK, gin.H{"message": "ended"})
}

func (s *Server) handlePut(c *gin.Context) {
	s.mu.Lock()
	s.PutCalls++
	fail := s.FailUpload
	s.mu.Unlock()

	if fail {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bucket unavailable"})
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	key := c.Param("bucket") + strings.TrimSuffix(c.Param("path"), "/")
	s.mu.Lock()
	s.objects[key] = raw
	s.LastObjectPath = strings.TrimPrefix(c.Param("path"), "/")
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"Key": key})
}

func (s *Server) handleGetObject(c *gin.Context) {
	key := c.Param("bucket") + strings.TrimSuffix(c.Param("path"), "/")
	s.mu.Lock()
	raw, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}
	c.Data(http.StatusOK, "application/pdf", raw)
}

func (s *Server) handleRealtime(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	var req realtime.SubscribeRequest
	if err := conn.ReadJSON(&req); err != nil || req.Action != realtime.ActionSubscribe {
		conn.Close()
		return
	}

	sub := &subscriberConn{conn: conn}
	s.mu.Lock()
	s.subscribers[req.Topic] = append(s.subscribers[req.Topic], sub)
	s.mu.Unlock()

	_ = sub.writeRow(realtime.Row{Event: realtime.EventSubscribed, Topic: req.Topic})

	// Answer pings until the client hangs up, then deregister.
	go func() {
		for {
			var msg realtime.SubscribeRequest
			if err := conn.ReadJSON(&msg); err != nil {
				break
			}
			if msg.Action == realtime.ActionPing {
				sub.mu.Lock()
				sub.pings++
				sub.mu.Unlock()
				_ = sub.writeRow(realtime.Row{Event: realtime.EventPong})
			}
		}
		s.mu.Lock()
		subs := s.subscribers[req.Topic]
		for i, other := range subs {
			if other == sub {
				s.subscribers[req.Topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		conn.Close()
	}()
}

// NewExamFixture returns a small two-question exam definition for tests.
func NewExamFixture(id string, durationMinutes int) model.ExamDefinition {
	return model.ExamDefinition{
		ID:              id,
		Title:           "Algebra Midterm",
		Subject:         "Mathematics",
		DurationMinutes: durationMinutes,
		TotalMarks:      20,
		Status:          model.ExamStatusActive,
		Questions: []model.Question{
			{
				ID:           "q1",
				QuestionText: "Pick one",
				QuestionType: model.QuestionTypeMCQ,
				Options:      model.OptionList{"A", "B"},
				Marks:        10,
				OrderNum:     1,
			},
			{
				ID:           "q2",
				QuestionText: "Explain your reasoning",
				QuestionType: model.QuestionTypeText,
				Marks:        10,
				OrderNum:     2,
			},
		},
	}
}
