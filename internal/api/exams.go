package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/examconnect/portal-client/internal/model"
	"github.com/examconnect/portal-client/internal/validate"
)

// ListExams returns the scheduled and active exams visible to the student,
// each flagged with whether the student already submitted it.
func (c *Client) ListExams(ctx context.Context) ([]model.ExamSummary, error) {
	var exams []model.ExamSummary
	if err := c.do(ctx, http.MethodGet, "/api/student/exams", nil, &exams); err != nil {
		return nil, err
	}
	return exams, nil
}

// GetExam fetches one exam with its ordered questions for taking.
// The definition is validated before being handed to a session.
func (c *Client) GetExam(ctx context.Context, examID string) (*model.ExamDefinition, error) {
	var def model.ExamDefinition
	if err := c.do(ctx, http.MethodGet, "/api/student/exams/"+examID, nil, &def); err != nil {
		return nil, err
	}
	if fields := validate.Struct(&def); fields != nil {
		return nil, fmt.Errorf("portal returned an invalid exam definition: %v", fields)
	}
	return &def, nil
}

// SubmitExam posts the final answer set and answer-sheet locator for an exam.
func (c *Client) SubmitExam(ctx context.Context, examID string, sub model.SubmissionRequest) error {
	var resp model.SubmissionResponse
	if err := c.do(ctx, http.MethodPost, "/api/student/exams/"+examID+"/submit", sub, &resp); err != nil {
		return err
	}
	c.log.Info().
		Str("exam_id", examID).
		Str("submission_id", resp.SubmissionID).
		Msg("Submission recorded")
	return nil
}

// Dashboard returns the student's aggregate standing.
func (c *Client) Dashboard(ctx context.Context) (*model.StudentDashboard, error) {
	var d model.StudentDashboard
	if err := c.do(ctx, http.MethodGet, "/api/student/dashboard", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Results returns the student's published results, newest first.
func (c *Client) Results(ctx context.Context) ([]model.Result, error) {
	var results []model.Result
	if err := c.do(ctx, http.MethodGet, "/api/student/results", nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}
