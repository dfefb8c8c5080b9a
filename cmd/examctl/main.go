package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/examconnect/portal-client/internal/api"
	"github.com/examconnect/portal-client/internal/auth"
	"github.com/examconnect/portal-client/internal/chat"
	"github.com/examconnect/portal-client/internal/config"
	"github.com/examconnect/portal-client/internal/liveclass"
	"github.com/examconnect/portal-client/internal/logger"
	"github.com/examconnect/portal-client/internal/model"
	"github.com/examconnect/portal-client/internal/realtime"
	examsession "github.com/examconnect/portal-client/internal/session"
	"github.com/examconnect/portal-client/internal/storage"
)

const usage = `Usage: examctl <command> [flags]

Commands:
  login        Authenticate and store the access token
  logout       Forget the stored access token
  dashboard    Show the student dashboard
  exams        List available exams
  take         Take an exam: -id, -answers answers.json, -attachment sheet.pdf
  results      List published results
  chat         Show recent chat and follow new messages (-send "text" to post)
  classes      List active live classes (-watch to follow changes)
`

// app bundles the wired collaborators every subcommand needs.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	session *auth.Session
	api     *api.Client
	authn   *auth.Authenticator
	bucket  *storage.Client
	rt      *realtime.Client
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	// ─── Wire Collaborators ────────────────────────────────────────────
	session := auth.NewSession()
	loadToken(cfg.TokenFile, session)

	client := api.New(cfg.APIBaseURL, cfg.HTTPTimeout, session, log)
	a := &app{
		cfg:     cfg,
		log:     log,
		session: session,
		api:     client,
		authn:   auth.NewAuthenticator(client, session, log),
		bucket:  storage.New(cfg.StorageURL, cfg.StorageBucket, cfg.StorageKey, cfg.MaxUploadBytes, cfg.HTTPTimeout, session, log),
		rt:      realtime.New(cfg.RealtimeURL, session, log),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "login":
		err = a.runLogin(ctx)
	case "logout":
		err = a.runLogout()
	case "dashboard":
		err = a.runDashboard(ctx)
	case "exams":
		err = a.runExams(ctx)
	case "take":
		err = a.runTake(ctx, os.Args[2:])
	case "results":
		err = a.runResults(ctx)
	case "chat":
		err = a.runChat(ctx, os.Args[2:])
	case "classes":
		err = a.runClasses(ctx, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ─── Commands ───────────────────────────────────────────────────────

func (a *app) runLogin(ctx context.Context) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}

	fmt.Print("Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	profile, err := a.authn.Login(ctx, email, string(bytePassword))
	if err != nil {
		return err
	}
	if err := saveToken(a.cfg.TokenFile, a.session.Token()); err != nil {
		return err
	}

	fmt.Printf("Logged in as %s (%s)\n", profile.FullName, profile.Role)
	return nil
}

func (a *app) runLogout() error {
	a.authn.Logout()
	if err := os.Remove(a.cfg.TokenFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func (a *app) runDashboard(ctx context.Context) error {
	d, err := a.api.Dashboard(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Completed exams:   %d\n", d.CompletedExams)
	fmt.Printf("Total submissions: %d\n", d.TotalSubmissions)
	if d.AveragePercentage != nil {
		fmt.Printf("Average:           %.1f%%\n", *d.AveragePercentage)
	}
	if len(d.UpcomingExams) > 0 {
		fmt.Println("\nUpcoming:")
		for _, e := range d.UpcomingExams {
			fmt.Printf("  %-36s  %s (%d min)\n", e.ID, e.Title, e.DurationMinutes)
		}
	}
	return nil
}

func (a *app) runExams(ctx context.Context) error {
	exams, err := a.api.ListExams(ctx)
	if err != nil {
		return err
	}
	if len(exams) == 0 {
		fmt.Println("No exams available")
		return nil
	}
	for _, e := range exams {
		mark := " "
		if e.AlreadySubmitted {
			mark = "✓"
		}
		fmt.Printf("%s %-36s  %-30s  %s  %d min  %d marks\n",
			mark, e.ID, e.Title, e.Status, e.DurationMinutes, e.TotalMarks)
	}
	return nil
}

// runTake drives one headless exam attempt: load the definition, record the
// prepared answers, stage the answer sheet and submit.
func (a *app) runTake(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("take", flag.ExitOnError)
	examID := fs.String("id", "", "exam id")
	answersPath := fs.String("answers", "", "path to a JSON file of question id -> answer")
	attachmentPath := fs.String("attachment", "", "path to the PDF answer sheet")
	_ = fs.Parse(args)

	if *examID == "" || *answersPath == "" || *attachmentPath == "" {
		return fmt.Errorf("take requires -id, -answers and -attachment")
	}

	raw, err := os.ReadFile(*answersPath)
	if err != nil {
		return fmt.Errorf("read answers: %w", err)
	}
	var answers model.AnswerSet
	if err := json.Unmarshal(raw, &answers); err != nil {
		return fmt.Errorf("decode answers: %w", err)
	}

	sheet, err := os.ReadFile(*attachmentPath)
	if err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}
	contentType := "application/pdf"
	if filepath.Ext(*attachmentPath) != ".pdf" {
		contentType = "application/octet-stream"
	}

	ctrl := examsession.New(a.api, a.bucket, a.api, a.log)
	if err := ctrl.Start(ctx, *examID); err != nil {
		return err
	}

	exam := ctrl.Exam()
	fmt.Printf("Taking %q (%d questions, %s on the clock)\n", exam.Title, len(exam.Questions), ctrl.Clock())

	for _, q := range exam.Questions {
		answer, ok := answers[q.ID]
		if !ok {
			fmt.Printf("  [skip] %s\n", q.ID)
			continue
		}
		if err := ctrl.RecordAnswer(q.ID, answer); err != nil {
			return err
		}
		fmt.Printf("  [ok]   %s\n", q.ID)
	}

	err = ctrl.StageAttachment(examsession.Attachment{
		Filename:    filepath.Base(*attachmentPath),
		ContentType: contentType,
		Content:     sheet,
	})
	if err != nil {
		return err
	}

	if err := ctrl.Submit(ctx); err != nil {
		if code := examsession.CodeOf(err); code != "" {
			return fmt.Errorf("%s (%s remaining)", examsession.Message(code), ctrl.Clock())
		}
		return err
	}
	fmt.Println("Submitted.")
	return nil
}

func (a *app) runResults(ctx context.Context) error {
	results, err := a.api.Results(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No published results yet")
		return nil
	}
	for _, r := range results {
		title := r.ExamID
		if r.Exam != nil {
			title = r.Exam.Title
		}
		line := fmt.Sprintf("%-30s  %.1f", title, r.Score)
		if r.Percentage != nil {
			line += fmt.Sprintf(" (%.1f%%)", *r.Percentage)
		}
		if r.Grade != "" {
			line += "  " + r.Grade
		}
		fmt.Println(line)
	}
	return nil
}

func (a *app) runChat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	send := fs.String("send", "", "post one message and exit")
	limit := fs.Int("limit", 20, "history lines to show")
	_ = fs.Parse(args)

	svc := chat.NewService(a.api, a.rt, a.log)

	if *send != "" {
		return svc.Send(ctx, *send)
	}

	history, err := svc.History(ctx, *limit)
	if err != nil {
		return err
	}
	for _, msg := range history {
		printMessage(msg)
	}

	fmt.Println("--- following, ^C to stop ---")
	return svc.Subscribe(ctx, printMessage)
}

func printMessage(msg model.ChatMessage) {
	fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Local().Format("15:04"), msg.SenderName, msg.Content)
}

func (a *app) runClasses(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("classes", flag.ExitOnError)
	watch := fs.Bool("watch", false, "follow live-class changes")
	_ = fs.Parse(args)

	svc := liveclass.NewService(a.api, a.rt, a.session, a.cfg.MeetBaseURL, a.log)

	printList := func() error {
		classes, err := svc.List(ctx)
		if err != nil {
			return err
		}
		if len(classes) == 0 {
			fmt.Println("No active classes")
			return nil
		}
		for _, class := range classes {
			fmt.Printf("%-30s  %s\n", class.Title, svc.JoinURL(class))
		}
		return nil
	}

	if err := printList(); err != nil {
		return err
	}
	if !*watch {
		return nil
	}

	fmt.Println("--- watching, ^C to stop ---")
	return svc.Watch(ctx, func() {
		fmt.Printf("--- %s ---\n", time.Now().Format("15:04:05"))
		_ = printList()
	})
}

// ─── Token Persistence ──────────────────────────────────────────────

func loadToken(path string, session *auth.Session) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if token := strings.TrimSpace(string(raw)); token != "" {
		session.Set(token, nil)
	}
}

func saveToken(path, token string) error {
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}
