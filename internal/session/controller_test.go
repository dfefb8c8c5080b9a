package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/examconnect/portal-client/internal/model"
)

func testExam(durationMinutes int) *model.ExamDefinition {
	return &model.ExamDefinition{
		ID:              "ex1",
		Title:           "Algebra Midterm",
		Subject:         "Mathematics",
		DurationMinutes: durationMinutes,
		TotalMarks:      20,
		Questions: []model.Question{
			{ID: "q1", QuestionText: "Pick one", QuestionType: model.QuestionTypeMCQ, Options: model.OptionList{"A", "B"}, Marks: 10, OrderNum: 1},
			{ID: "q2", QuestionText: "Explain", QuestionType: model.QuestionTypeText, Marks: 10, OrderNum: 2},
		},
	}
}

type fakeSource struct {
	def *model.ExamDefinition
	err error
}

func (f *fakeSource) GetExam(ctx context.Context, examID string) (*model.ExamDefinition, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.def, nil
}

type fakeStore struct {
	mu       sync.Mutex
	puts     int
	lastPath string
	err      error

	// When set, the first Put signals started and blocks until release.
	started chan struct{}
	release chan struct{}
}

func (f *fakeStore) Put(ctx context.Context, path, contentType string, r io.Reader, size int64) error {
	f.mu.Lock()
	f.puts++
	f.lastPath = path
	first := f.puts == 1
	err := f.err
	f.mu.Unlock()

	if f.started != nil && first {
		close(f.started)
		<-f.release
	}
	return err
}

func (f *fakeStore) PublicURL(path string) string {
	return "https://cdn.example/answers/" + path
}

func (f *fakeStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func (f *fakeStore) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeSink struct {
	mu       sync.Mutex
	posts    int
	last     model.SubmissionRequest
	lastExam string
	err      error
}

func (f *fakeSink) SubmitExam(ctx context.Context, examID string, sub model.SubmissionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts++
	f.last = sub
	f.lastExam = examID
	if f.err != nil {
		return f.err
	}
	return nil
}

func (f *fakeSink) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts
}

func pdfAttachment() Attachment {
	return Attachment{Filename: "sheet.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4 fake")}
}

// newActive builds a controller whose internal ticker effectively never
// fires, so tests can drive the countdown by hand.
func newActive(t *testing.T, durationMinutes int, store *fakeStore, sink *fakeSink, opts ...Option) *Controller {
	t.Helper()
	source := &fakeSource{def: testExam(durationMinutes)}
	opts = append([]Option{WithTickInterval(time.Hour)}, opts...)
	c := New(source, store, sink, zerolog.Nop(), opts...)
	if err := c.Start(context.Background(), "ex1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return c
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestCountdownMonotonicity(t *testing.T) {
	tests := []struct {
		name            string
		durationMinutes int
		ticks           int
		want            int
	}{
		{name: "no ticks", durationMinutes: 2, ticks: 0, want: 120},
		{name: "partial", durationMinutes: 2, ticks: 45, want: 75},
		{name: "exactly to zero", durationMinutes: 1, ticks: 60, want: 0},
		{name: "clamped past zero", durationMinutes: 1, ticks: 90, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newActive(t, tt.durationMinutes, &fakeStore{}, &fakeSink{})
			for i := 0; i < tt.ticks; i++ {
				c.Tick()
			}
			if got := c.RemainingSeconds(); got != tt.want {
				t.Errorf("RemainingSeconds() after %d ticks = %d, want %d", tt.ticks, got, tt.want)
			}
		})
	}
}

func TestCountdownReducer(t *testing.T) {
	if got := nextRemaining(5); got != 4 {
		t.Errorf("nextRemaining(5) = %d, want 4", got)
	}
	if got := nextRemaining(0); got != 0 {
		t.Errorf("nextRemaining(0) = %d, want 0", got)
	}
	if got := nextRemaining(-3); got != 0 {
		t.Errorf("nextRemaining(-3) = %d, want 0", got)
	}
}

func TestForcedSubmissionOnExpiry(t *testing.T) {
	store := &fakeStore{}
	sink := &fakeSink{}
	source := &fakeSource{def: testExam(1)}
	c := New(source, store, sink, zerolog.Nop(), WithTickInterval(time.Millisecond))
	if err := c.Start(context.Background(), "ex1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.RecordAnswer("q1", "A"); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}
	if err := c.StageAttachment(pdfAttachment()); err != nil {
		t.Fatalf("StageAttachment() error = %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return c.State() == StateSubmitted })

	if got := store.putCount(); got != 1 {
		t.Errorf("store puts = %d, want 1", got)
	}
	if got := sink.postCount(); got != 1 {
		t.Errorf("sink posts = %d, want 1", got)
	}
}

func TestForcedSubmissionWithoutAttachment(t *testing.T) {
	store := &fakeStore{}
	sink := &fakeSink{}
	source := &fakeSource{def: testExam(1)}
	c := New(source, store, sink, zerolog.Nop(), WithTickInterval(time.Millisecond))
	if err := c.Start(context.Background(), "ex1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.RecordAnswer("q2", "hello"); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return c.LastError() != nil })

	if got := CodeOf(c.LastError()); got != CodeMissingAttachment {
		t.Errorf("LastError code = %q, want %q", got, CodeMissingAttachment)
	}
	if got := c.State(); got != StateActive {
		t.Errorf("State() = %q, want %q", got, StateActive)
	}
	if got := c.RemainingSeconds(); got != 0 {
		t.Errorf("RemainingSeconds() = %d, want 0", got)
	}
	if got := store.putCount(); got != 0 {
		t.Errorf("store puts = %d, want 0", got)
	}
	if got := sink.postCount(); got != 0 {
		t.Errorf("sink posts = %d, want 0", got)
	}
	// Collected answers survive the failed forced submission.
	if got := c.Answers()["q2"]; got != "hello" {
		t.Errorf("answers[q2] = %q, want %q", got, "hello")
	}
}

func TestAnswerOverwrite(t *testing.T) {
	c := newActive(t, 1, &fakeStore{}, &fakeSink{})
	if err := c.RecordAnswer("q1", "A"); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}
	if err := c.RecordAnswer("q1", "B"); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}
	answers := c.Answers()
	if len(answers) != 1 {
		t.Fatalf("len(answers) = %d, want 1", len(answers))
	}
	if answers["q1"] != "B" {
		t.Errorf("answers[q1] = %q, want %q", answers["q1"], "B")
	}
}

func TestReentrancyGuard(t *testing.T) {
	store := &fakeStore{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	sink := &fakeSink{}
	c := newActive(t, 1, store, sink)
	if err := c.StageAttachment(pdfAttachment()); err != nil {
		t.Fatalf("StageAttachment() error = %v", err)
	}

	firstDone := make(chan error, 1)
	go func() { firstDone <- c.Submit(context.Background()) }()

	<-store.started

	// Second attempt while the first is mid-upload must be a no-op.
	if err := c.Submit(context.Background()); err != nil {
		t.Errorf("concurrent Submit() error = %v, want nil no-op", err)
	}

	close(store.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}

	if got := store.putCount(); got != 1 {
		t.Errorf("store puts = %d, want 1", got)
	}
	if got := sink.postCount(); got != 1 {
		t.Errorf("sink posts = %d, want 1", got)
	}
	if got := c.State(); got != StateSubmitted {
		t.Errorf("State() = %q, want %q", got, StateSubmitted)
	}
}

func TestTypeRejection(t *testing.T) {
	store := &fakeStore{}
	sink := &fakeSink{}
	c := newActive(t, 1, store, sink)
	if err := c.StageAttachment(Attachment{
		Filename:    "photo.png",
		ContentType: "image/png",
		Content:     []byte("png bytes"),
	}); err != nil {
		t.Fatalf("StageAttachment() error = %v", err)
	}

	err := c.Submit(context.Background())
	if got := CodeOf(err); got != CodeInvalidFileType {
		t.Errorf("Submit() code = %q, want %q", got, CodeInvalidFileType)
	}
	if got := store.putCount(); got != 0 {
		t.Errorf("store puts = %d, want 0 (no upload for rejected type)", got)
	}
	if got := c.State(); got != StateActive {
		t.Errorf("State() = %q, want %q", got, StateActive)
	}
}

func TestMissingAttachmentOnManualSubmit(t *testing.T) {
	store := &fakeStore{}
	c := newActive(t, 1, store, &fakeSink{})

	err := c.Submit(context.Background())
	if got := CodeOf(err); got != CodeMissingAttachment {
		t.Errorf("Submit() code = %q, want %q", got, CodeMissingAttachment)
	}
	if got := c.State(); got != StateActive {
		t.Errorf("State() = %q, want %q", got, StateActive)
	}
	if got := store.putCount(); got != 0 {
		t.Errorf("store puts = %d, want 0", got)
	}
}

func TestFetchFailureIsTerminal(t *testing.T) {
	source := &fakeSource{err: errors.New("exam not found")}
	c := New(source, &fakeStore{}, &fakeSink{}, zerolog.Nop())

	err := c.Start(context.Background(), "missing")
	if got := CodeOf(err); got != CodeFetchFailed {
		t.Errorf("Start() code = %q, want %q", got, CodeFetchFailed)
	}
	if got := c.State(); got != StateFailed {
		t.Errorf("State() = %q, want %q", got, StateFailed)
	}
	if err := c.RecordAnswer("q1", "A"); !errors.Is(err, ErrNotActive) {
		t.Errorf("RecordAnswer() after failure = %v, want ErrNotActive", err)
	}
}

func TestUploadFailureRecoversAndResubmits(t *testing.T) {
	store := &fakeStore{err: errors.New("bucket unavailable")}
	sink := &fakeSink{}
	c := newActive(t, 1, store, sink)
	if err := c.RecordAnswer("q1", "A"); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}
	if err := c.StageAttachment(pdfAttachment()); err != nil {
		t.Fatalf("StageAttachment() error = %v", err)
	}

	err := c.Submit(context.Background())
	if got := CodeOf(err); got != CodeUploadFailed {
		t.Errorf("Submit() code = %q, want %q", got, CodeUploadFailed)
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("State() = %q, want %q", got, StateActive)
	}
	if got := c.Answers()["q1"]; got != "A" {
		t.Errorf("answers[q1] = %q, want %q (no data loss on failed submit)", got, "A")
	}

	// The store comes back; the same session submits cleanly.
	store.setErr(nil)
	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("resubmit error = %v", err)
	}
	if got := c.State(); got != StateSubmitted {
		t.Errorf("State() = %q, want %q", got, StateSubmitted)
	}
	if got := sink.postCount(); got != 1 {
		t.Errorf("sink posts = %d, want 1", got)
	}
}

func TestCountdownSurvivesFailedSubmission(t *testing.T) {
	store := &fakeStore{
		err:     errors.New("bucket unavailable"),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	sink := &fakeSink{}
	source := &fakeSource{def: testExam(1)}
	c := New(source, store, sink, zerolog.Nop(), WithTickInterval(5*time.Millisecond))
	if err := c.Start(context.Background(), "ex1"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.StageAttachment(pdfAttachment()); err != nil {
		t.Fatalf("StageAttachment() error = %v", err)
	}

	submitDone := make(chan error, 1)
	go func() { submitDone <- c.Submit(context.Background()) }()

	// Hold the upload open long enough for several ticks to land while the
	// session is SUBMITTING, then let it fail.
	<-store.started
	time.Sleep(30 * time.Millisecond)
	close(store.release)

	err := <-submitDone
	if got := CodeOf(err); got != CodeUploadFailed {
		t.Fatalf("Submit() code = %q, want %q", got, CodeUploadFailed)
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("State() = %q, want %q", got, StateActive)
	}

	// The clock keeps running after the recovery.
	before := c.RemainingSeconds()
	waitFor(t, 2*time.Second, func() bool { return c.RemainingSeconds() < before })

	// The store comes back; expiry still forces the submission.
	store.setErr(nil)
	waitFor(t, 2*time.Second, func() bool { return c.State() == StateSubmitted })
	if got := sink.postCount(); got != 1 {
		t.Errorf("sink posts = %d, want 1", got)
	}
}

func TestRejectedSubmissionLeavesUploadOrphaned(t *testing.T) {
	store := &fakeStore{}
	sink := &fakeSink{err: errors.New("exam is not accepting submissions")}
	c := newActive(t, 1, store, sink)
	if err := c.StageAttachment(pdfAttachment()); err != nil {
		t.Fatalf("StageAttachment() error = %v", err)
	}

	err := c.Submit(context.Background())
	if got := CodeOf(err); got != CodeSubmissionRejected {
		t.Errorf("Submit() code = %q, want %q", got, CodeSubmissionRejected)
	}
	if got := c.State(); got != StateActive {
		t.Errorf("State() = %q, want %q", got, StateActive)
	}
	// No compensating delete: the upload happened and stays.
	if got := store.putCount(); got != 1 {
		t.Errorf("store puts = %d, want 1", got)
	}
}

func TestSessionFreezesAfterSubmit(t *testing.T) {
	c := newActive(t, 1, &fakeStore{}, &fakeSink{})
	if err := c.StageAttachment(pdfAttachment()); err != nil {
		t.Fatalf("StageAttachment() error = %v", err)
	}
	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := c.RecordAnswer("q1", "late"); !errors.Is(err, ErrNotActive) {
		t.Errorf("RecordAnswer() after submit = %v, want ErrNotActive", err)
	}
	if err := c.StageAttachment(pdfAttachment()); !errors.Is(err, ErrNotActive) {
		t.Errorf("StageAttachment() after submit = %v, want ErrNotActive", err)
	}
	if got := c.Tick(); got != tickStopped {
		t.Errorf("Tick() after submit = %v, want tickStopped", got)
	}
	if err := c.Start(context.Background(), "ex2"); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start() reuse = %v, want ErrAlreadyStarted", err)
	}
}

func TestSubmissionPathNaming(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	store := &fakeStore{}
	c := newActive(t, 1, store, &fakeSink{}, WithClock(func() time.Time { return fixed }))
	if err := c.StageAttachment(pdfAttachment()); err != nil {
		t.Fatalf("StageAttachment() error = %v", err)
	}
	if err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	want := "submissions/ex1_1700000000000.pdf"
	if store.lastPath != want {
		t.Errorf("upload path = %q, want %q", store.lastPath, want)
	}
}

func TestSubmissionPathDefaultsExtension(t *testing.T) {
	got := submissionPath("ex1", "scan", time.UnixMilli(42))
	if got != "submissions/ex1_42.pdf" {
		t.Errorf("submissionPath() = %q, want %q", got, "submissions/ex1_42.pdf")
	}
}

func TestClockFormat(t *testing.T) {
	c := newActive(t, 2, &fakeStore{}, &fakeSink{})
	if got := c.Clock(); got != "02:00" {
		t.Errorf("Clock() = %q, want %q", got, "02:00")
	}
	for i := 0; i < 61; i++ {
		c.Tick()
	}
	if got := c.Clock(); got != "00:59" {
		t.Errorf("Clock() = %q, want %q", got, "00:59")
	}
}
