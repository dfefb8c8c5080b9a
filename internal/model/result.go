package model

// ExamRef is the exam info results are enriched with.
type ExamRef struct {
	Title       string `json:"title"`
	Subject     string `json:"subject"`
	TotalMarks  int    `json:"total_marks,omitempty"`
	ScheduledAt string `json:"scheduled_at,omitempty"`
}

// Result is a published, graded exam result for a student.
type Result struct {
	ID          string   `json:"id"`
	ExamID      string   `json:"exam_id"`
	StudentID   string   `json:"student_id"`
	Score       float64  `json:"score"`
	Percentage  *float64 `json:"percentage,omitempty"`
	Grade       string   `json:"grade,omitempty"`
	Remarks     string   `json:"remarks,omitempty"`
	Published   bool     `json:"published"`
	EvaluatedAt string   `json:"evaluated_at,omitempty"`
	Exam        *ExamRef `json:"exam,omitempty"`
}

// StudentDashboard aggregates the student's standing on the portal.
type StudentDashboard struct {
	UpcomingExams     []ExamSummary `json:"upcoming_exams"`
	CompletedExams    int           `json:"completed_exams"`
	TotalSubmissions  int           `json:"total_submissions"`
	AveragePercentage *float64      `json:"average_percentage,omitempty"`
	RecentResults     []Result      `json:"recent_results"`
}
