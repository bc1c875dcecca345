package models

import "time"

// UploadedFile is one user-supplied document. It lives for a single request.
type UploadedFile struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declared_type"`
	Content      []byte `json:"-"`
}

// Size returns the byte length of the content.
func (f *UploadedFile) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Content))
}

type RunOutcome string

const (
	RunDone   RunOutcome = "done"
	RunFailed RunOutcome = "failed"
)

// Run is the journal record of one pipeline attempt.
type Run struct {
	ID           int64      `json:"id"`
	ObjectKey    string     `json:"object_key"`
	DeclaredType string     `json:"declared_type"`
	Size         int64      `json:"size"`
	Existed      bool       `json:"existed"`
	Stage        string     `json:"stage"`
	Outcome      RunOutcome `json:"outcome"`
	FailureKind  string     `json:"failure_kind,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
