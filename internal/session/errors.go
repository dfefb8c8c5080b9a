package session

import "errors"

// ErrorCode identifies the failure classes of an exam session.
type ErrorCode string

const (
	CodeFetchFailed        ErrorCode = "FETCH_FAILED"
	CodeMissingAttachment  ErrorCode = "MISSING_ATTACHMENT"
	CodeInvalidFileType    ErrorCode = "INVALID_FILE_TYPE"
	CodeUploadFailed       ErrorCode = "UPLOAD_FAILED"
	CodeSubmissionRejected ErrorCode = "SUBMISSION_REJECTED"
)

// Misuse errors, distinct from the session failure taxonomy.
var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotActive      = errors.New("session is not active")
)

// Error is a session failure carrying its taxonomy code and the collaborator
// detail, if any. Every code except FETCH_FAILED is recoverable: the session
// returns to ACTIVE with answers and countdown intact.
type Error struct {
	Code   ErrorCode
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return string(e.Code) + ": " + e.Detail
	}
	return string(e.Code) + ": " + Message(e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

// Message returns the human-readable message shown to the student for a code.
func Message(code ErrorCode) string {
	switch code {
	case CodeFetchFailed:
		return "Failed to load exam."
	case CodeMissingAttachment:
		return "Please upload your answer sheet as a PDF file before submitting."
	case CodeInvalidFileType:
		return "Only PDF files are allowed for submission."
	case CodeUploadFailed:
		return "Uploading your answer sheet failed."
	case CodeSubmissionRejected:
		return "The portal rejected your submission."
	default:
		return "An unexpected error occurred."
	}
}

// CodeOf extracts the session error code from err, or "" when err is not a
// session error.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func newError(code ErrorCode, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

func wrapError(code ErrorCode, cause error) *Error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &Error{Code: code, Detail: detail, cause: cause}
}
