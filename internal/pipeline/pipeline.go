// Package pipeline runs one upload through storage, extraction and
// summarization, stopping at the first stage that fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"docsummarizer/internal/extract"
	"docsummarizer/internal/models"
	"docsummarizer/internal/objectstore"
	"docsummarizer/internal/service/ai"
)

type Stage string

const (
	StageIdle        Stage = "idle"
	StageUploading   Stage = "uploading"
	StageFetching    Stage = "fetching"
	StageExtracting  Stage = "extracting"
	StageSummarizing Stage = "summarizing"
	StageDone        Stage = "done"
	StageError       Stage = "error"
)

// FailureKind names the operation that stopped the run.
type FailureKind string

const (
	FailureList      FailureKind = "list"
	FailureUpload    FailureKind = "upload"
	FailureFetch     FailureKind = "fetch"
	FailureExtract   FailureKind = "extract"
	FailureSummarize FailureKind = "summarize"
)

// ErrNoText is reported when a document parses but holds no text.
var ErrNoText = errors.New("document contains no text")

// Failure records where and why a run stopped.
type Failure struct {
	Kind  FailureKind
	Stage Stage
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failed during %s: %v", f.Kind, f.Stage, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Result is the outcome of one run. Stage is either StageDone or StageError.
type Result struct {
	Stage   Stage
	Key     string
	Existed bool
	Kind    extract.Kind
	Text    string
	Summary string
	Failure *Failure
	Notices []Notice
}

// Succeeded reports whether the run reached StageDone.
func (r *Result) Succeeded() bool {
	return r != nil && r.Stage == StageDone
}

type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (objectstore.UploadResult, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
}

type TextExtractor interface {
	Extract(ctx context.Context, data []byte, kind extract.Kind) (string, error)
}

// RunRecorder persists finished runs. Errors are logged and otherwise ignored.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *models.Run) error
}

type Option func(*Pipeline)

func WithRecorder(recorder RunRecorder) Option {
	return func(p *Pipeline) {
		p.recorder = recorder
	}
}

// WithTimeout bounds a whole run. Zero or negative means no bound.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = timeout
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

type Pipeline struct {
	store      ObjectStore
	extractor  TextExtractor
	summarizer ai.Summarizer
	recorder   RunRecorder
	timeout    time.Duration
	log        *slog.Logger
	now        func() time.Time
}

func New(store ObjectStore, extractor TextExtractor, summarizer ai.Summarizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		extractor:  extractor,
		summarizer: summarizer,
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run drives file through every stage in order. It never returns nil.
func (p *Pipeline) Run(ctx context.Context, file *models.UploadedFile) *Result {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	res := &Result{Stage: StageIdle}
	if file == nil {
		res.fail(FailureUpload, StageUploading, objectstore.ErrInvalidKey)
		return res
	}
	defer p.record(ctx, file, res)

	res.Stage = StageUploading
	uploaded, err := p.store.Upload(ctx, file.Name, file.Content, file.DeclaredType)
	if err != nil {
		kind := FailureUpload
		var storeErr *objectstore.Error
		if errors.As(err, &storeErr) && storeErr.Kind == objectstore.KindList {
			kind = FailureList
		}
		res.fail(kind, StageUploading, err)
		return res
	}
	res.Key = uploaded.Key
	res.Existed = uploaded.Existed
	if uploaded.Existed {
		res.notice(NoticeInfo, fmt.Sprintf("File '%s' already exists in S3.", uploaded.Key))
	} else {
		res.notice(NoticeSuccess, fmt.Sprintf("File '%s' uploaded successfully to S3!", uploaded.Key))
	}

	res.Stage = StageFetching
	data, err := p.store.Fetch(ctx, res.Key)
	if err != nil {
		res.fail(FailureFetch, StageFetching, err)
		return res
	}

	res.Stage = StageExtracting
	res.Kind = extract.KindFromMIME(file.DeclaredType)
	text, err := p.extractor.Extract(ctx, data, res.Kind)
	if err != nil {
		res.fail(FailureExtract, StageExtracting, err)
		return res
	}
	if text == "" {
		res.fail(FailureExtract, StageExtracting, ErrNoText)
		return res
	}
	res.Text = text

	res.Stage = StageSummarizing
	summary, err := p.summarizer.Summarize(ctx, text)
	if err != nil {
		res.fail(FailureSummarize, StageSummarizing, err)
		return res
	}
	if summary == "" {
		res.fail(FailureSummarize, StageSummarizing, ai.ErrEmptySummary)
		return res
	}
	res.Summary = summary
	res.Stage = StageDone

	p.log.InfoContext(ctx, "Document summary is done",
		"key", res.Key, "kind", res.Kind.String(), "textLength", len(text))
	return res
}

func (r *Result) fail(kind FailureKind, stage Stage, err error) {
	r.Failure = &Failure{Kind: kind, Stage: stage, Err: err}
	r.Stage = StageError
}

func (r *Result) notice(level NoticeLevel, message string) {
	r.Notices = append(r.Notices, Notice{Level: level, Message: message})
}

func (p *Pipeline) record(ctx context.Context, file *models.UploadedFile, res *Result) {
	if res.Failure != nil {
		p.log.WarnContext(ctx, "Document summary failed",
			"key", file.Name, "failureKind", res.Failure.Kind, "error", res.Failure.Err)
	}
	if p.recorder == nil {
		return
	}

	run := &models.Run{
		ObjectKey:    file.Name,
		DeclaredType: file.DeclaredType,
		Size:         file.Size(),
		Existed:      res.Existed,
		Stage:        string(res.Stage),
		Outcome:      models.RunDone,
		Summary:      res.Summary,
		CreatedAt:    p.now().UTC(),
	}
	if res.Key != "" {
		run.ObjectKey = res.Key
	}
	if res.Failure != nil {
		run.Outcome = models.RunFailed
		run.Stage = string(res.Failure.Stage)
		run.FailureKind = string(res.Failure.Kind)
		run.ErrorMessage = res.Failure.Err.Error()
	}

	// Record even when the run's own deadline has passed.
	if err := p.recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		p.log.ErrorContext(ctx, "Failed to record run", "key", run.ObjectKey, "error", err)
	}
}
