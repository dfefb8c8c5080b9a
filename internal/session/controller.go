package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/examconnect/portal-client/internal/model"
)

const pdfMIME = "application/pdf"

// State is the finite state of an exam session.
type State string

const (
	StateLoading    State = "LOADING"
	StateActive     State = "ACTIVE"
	StateSubmitting State = "SUBMITTING"
	StateSubmitted  State = "SUBMITTED"
	StateFailed     State = "FAILED"
)

// ContentSource supplies exam definitions. Fetched once per session.
type ContentSource interface {
	GetExam(ctx context.Context, examID string) (*model.ExamDefinition, error)
}

// AttachmentStore accepts an uploaded answer sheet and resolves its durable
// public locator.
type AttachmentStore interface {
	Put(ctx context.Context, path, contentType string, r io.Reader, size int64) error
	PublicURL(path string) string
}

// SubmissionSink durably records the final answer set plus locator.
type SubmissionSink interface {
	SubmitExam(ctx context.Context, examID string, sub model.SubmissionRequest) error
}

// Attachment is the single staged answer sheet for a session.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Controller runs one student's attempt at one exam: it loads the
// definition, counts down, collects answers, accepts one staged PDF and
// performs a single guarded submission. A controller serves exactly one
// session; a new exam needs a new controller.
type Controller struct {
	source ContentSource
	store  AttachmentStore
	sink   SubmissionSink
	log    zerolog.Logger

	now       func() time.Time
	tickEvery time.Duration

	mu         sync.Mutex
	examID     string
	exam       *model.ExamDefinition
	state      State
	remaining  int
	answers    model.AnswerSet
	staged     *Attachment
	submitting bool
	lastErr    *Error
	stopTick   context.CancelFunc
}

// Option customizes a Controller.
type Option func(*Controller)

// WithTickInterval overrides the one-second countdown tick. Used by tests
// to run sessions at speed.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.tickEvery = d }
}

// WithClock overrides the wall clock used for upload naming.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a controller over its three collaborators.
func New(source ContentSource, store AttachmentStore, sink SubmissionSink, log zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		source:    source,
		store:     store,
		sink:      sink,
		log:       log.With().Str("component", "exam_session").Logger(),
		now:       time.Now,
		tickEvery: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start fetches the exam definition and, on success, activates the session
// and starts the countdown. A load failure is terminal: the session moves to
// FAILED and is not retried.
func (c *Controller) Start(ctx context.Context, examID string) error {
	c.mu.Lock()
	if c.state != "" {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = StateLoading
	c.examID = examID
	c.mu.Unlock()

	def, err := c.source.GetExam(ctx, examID)
	if err != nil {
		serr := wrapError(CodeFetchFailed, err)
		c.mu.Lock()
		c.state = StateFailed
		c.lastErr = serr
		c.mu.Unlock()
		c.log.Error().Err(err).Str("exam_id", examID).Msg("Exam load failed")
		return serr
	}

	tickCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.exam = def
	c.answers = model.AnswerSet{}
	c.remaining = def.DurationMinutes * 60
	c.state = StateActive
	c.stopTick = cancel
	c.mu.Unlock()

	c.log.Info().
		Str("exam_id", examID).
		Str("title", def.Title).
		Int("duration_minutes", def.DurationMinutes).
		Int("questions", len(def.Questions)).
		Msg("Session active")

	go c.runCountdown(tickCtx)
	return nil
}

type tickOutcome int

const (
	tickAdvanced tickOutcome = iota // countdown still running
	tickExpired                     // counter just hit zero, forced submission due
	tickPaused                      // submission in flight, clock holds
	tickStopped                     // session ended, ticker must die
)

// nextRemaining is the countdown reducer: one tick takes the current counter
// to the next, clamped at zero.
func nextRemaining(remaining int) int {
	if remaining <= 0 {
		return 0
	}
	return remaining - 1
}

// Tick applies one countdown tick. A tick during SUBMITTING holds the clock
// without killing the ticker: a recoverable submit failure returns the
// session to ACTIVE and the countdown must resume, or the expiry trigger
// could never fire. Ticks in terminal states are ignored, so a stray tick
// can never re-trigger a submission after the session ended.
func (c *Controller) Tick() tickOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateActive:
	case StateSubmitting:
		return tickPaused
	default:
		return tickStopped
	}
	prev := c.remaining
	c.remaining = nextRemaining(prev)
	if prev > 0 && c.remaining == 0 {
		return tickExpired
	}
	return tickAdvanced
}

// runCountdown drives the ticker until expiry, cancellation, or the state
// leaving ACTIVE. On expiry it fires the forced submission exactly once and
// exits; the counter never resumes past zero.
func (c *Controller) runCountdown(ctx context.Context) {
	ticker := time.NewTicker(c.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch c.Tick() {
			case tickAdvanced, tickPaused:
			case tickStopped:
				return
			case tickExpired:
				c.log.Info().Str("exam_id", c.examID).Msg("Time expired, forcing submission")
				if err := c.Submit(ctx); err != nil {
					c.log.Warn().Err(err).Msg("Forced submission failed")
				}
				return
			}
		}
	}
}

// RecordAnswer stores the response for a question, overwriting any prior
// value. Content is not validated at record time.
func (c *Controller) RecordAnswer(questionID, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return ErrNotActive
	}
	c.answers[questionID] = answer
	return nil
}

// StageAttachment stages the answer sheet, replacing any previously staged
// file. The type check happens at submission, not here.
func (c *Controller) StageAttachment(att Attachment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		return ErrNotActive
	}
	c.staged = &att
	return nil
}

// Submit runs the guarded submission procedure. A second attempt while one
// is outstanding is a no-op. Recoverable failures return the session to
// ACTIVE with answers, staged file and countdown untouched; no retries are
// attempted.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.submitting = true
	c.state = StateSubmitting
	examID := c.examID
	staged := c.staged
	answers := c.answers.Clone()
	c.mu.Unlock()

	if staged == nil {
		return c.recover(newError(CodeMissingAttachment, ""))
	}
	if staged.ContentType != pdfMIME {
		return c.recover(newError(CodeInvalidFileType,
			fmt.Sprintf("declared type %q, want %q", staged.ContentType, pdfMIME)))
	}

	path := submissionPath(examID, staged.Filename, c.now())
	if err := c.store.Put(ctx, path, staged.ContentType, bytes.NewReader(staged.Content), int64(len(staged.Content))); err != nil {
		return c.recover(wrapError(CodeUploadFailed, err))
	}

	locator := c.store.PublicURL(path)
	sub := model.SubmissionRequest{Answers: answers, FileURL: locator}
	if err := c.sink.SubmitExam(ctx, examID, sub); err != nil {
		// The uploaded object is left orphaned; a resubmission uploads
		// under a fresh name.
		return c.recover(wrapError(CodeSubmissionRejected, err))
	}

	c.mu.Lock()
	c.state = StateSubmitted
	c.submitting = false
	c.lastErr = nil
	if c.stopTick != nil {
		c.stopTick()
	}
	c.mu.Unlock()

	c.log.Info().
		Str("exam_id", examID).
		Str("file_url", locator).
		Int("answers", len(answers)).
		Msg("Exam submitted")
	return nil
}

// recover returns the session to ACTIVE after a recoverable submit failure.
func (c *Controller) recover(serr *Error) error {
	c.mu.Lock()
	c.state = StateActive
	c.submitting = false
	c.lastErr = serr
	c.mu.Unlock()
	c.log.Warn().Str("code", string(serr.Code)).Str("detail", serr.Detail).Msg("Submission aborted")
	return serr
}

// submissionPath derives the collision-resistant bucket path for an upload.
func submissionPath(examID, filename string, now time.Time) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".pdf"
	}
	return fmt.Sprintf("submissions/%s_%d%s", examID, now.UnixMilli(), ext)
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RemainingSeconds returns the countdown value.
func (c *Controller) RemainingSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Clock renders the remaining time as MM:SS for display.
func (c *Controller) Clock() string {
	s := c.RemainingSeconds()
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

// Exam returns the loaded definition, or nil before a successful load.
func (c *Controller) Exam() *model.ExamDefinition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exam
}

// Answers returns a copy of the collected answers.
func (c *Controller) Answers() model.AnswerSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Clone()
}

// StagedAttachment returns the currently staged answer sheet, or nil.
func (c *Controller) StagedAttachment() *Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staged
}

// LastError returns the most recent session failure, or nil. It is cleared
// by a successful submission.
func (c *Controller) LastError() *Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
