package model

import (
	"encoding/json"
	"fmt"
)

// ExamStatus enumerates the lifecycle states of an exam on the portal.
type ExamStatus string

const (
	ExamStatusDraft            ExamStatus = "draft"
	ExamStatusScheduled        ExamStatus = "scheduled"
	ExamStatusActive           ExamStatus = "active"
	ExamStatusCompleted        ExamStatus = "completed"
	ExamStatusResultsPublished ExamStatus = "results_published"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeMCQ        QuestionType = "mcq"
	QuestionTypeText       QuestionType = "text"
	QuestionTypeFileUpload QuestionType = "file_upload"
)

// ExamDefinition is an exam with its ordered questions, as served to a
// student taking it. Immutable once fetched for a session.
type ExamDefinition struct {
	ID              string     `json:"id" validate:"required"`
	Title           string     `json:"title" validate:"required"`
	Subject         string     `json:"subject"`
	Description     string     `json:"description,omitempty"`
	TeacherID       string     `json:"teacher_id,omitempty"`
	TeacherName     string     `json:"teacher_name,omitempty"`
	ScheduledAt     string     `json:"scheduled_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes" validate:"required,min=1"`
	TotalMarks      int        `json:"total_marks"`
	Status          ExamStatus `json:"status,omitempty"`
	Questions       []Question `json:"questions" validate:"dive"`
}

// ExamSummary is an exam row from the student exam listing.
type ExamSummary struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Subject          string     `json:"subject"`
	TeacherName      string     `json:"teacher_name,omitempty"`
	ScheduledAt      string     `json:"scheduled_at,omitempty"`
	DurationMinutes  int        `json:"duration_minutes"`
	TotalMarks       int        `json:"total_marks"`
	Status           ExamStatus `json:"status"`
	AlreadySubmitted bool       `json:"already_submitted"`
}

// Question is a single exam question. Correct answers are never present in
// student-facing payloads.
type Question struct {
	ID           string       `json:"id" validate:"required"`
	QuestionText string       `json:"question_text" validate:"required"`
	QuestionType QuestionType `json:"question_type"`
	Options      OptionList   `json:"options,omitempty"`
	Marks        int          `json:"marks"`
	OrderNum     int          `json:"order_num"`
}

// OptionList is the ordered MCQ option set. The portal stores options either
// as a JSON array or as a string holding an encoded array, so decoding
// accepts both forms.
type OptionList []string

func (o *OptionList) UnmarshalJSON(data []byte) error {
	var direct []string
	if err := json.Unmarshal(data, &direct); err == nil {
		*o = direct
		return nil
	}

	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return fmt.Errorf("options is neither an array nor a string: %s", data)
	}
	var inner []string
	if err := json.Unmarshal([]byte(encoded), &inner); err != nil {
		return fmt.Errorf("decode string-encoded options: %w", err)
	}
	*o = inner
	return nil
}

// AnswerSet maps question IDs to the student's single string response.
// Unanswered questions are simply absent.
type AnswerSet map[string]string

// Clone returns an independent copy of the answer set.
func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// SubmissionRequest is the body posted to the per-exam submission endpoint.
type SubmissionRequest struct {
	Answers AnswerSet `json:"answers"`
	FileURL string    `json:"file_url" validate:"required"`
}

// SubmissionResponse is the portal's acknowledgment of a recorded submission.
type SubmissionResponse struct {
	Message      string `json:"message"`
	SubmissionID string `json:"submission_id,omitempty"`
}
