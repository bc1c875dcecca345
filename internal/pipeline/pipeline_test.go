package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"docsummarizer/internal/extract"
	"docsummarizer/internal/models"
	"docsummarizer/internal/objectstore"
	"docsummarizer/internal/service/ai"
)

type fakeSummarizer struct {
	summary string
	err     error
	calls   int
	lastIn  string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	f.calls++
	f.lastIn = text
	return f.summary, f.err
}

// blockingSummarizer waits until its context ends.
type blockingSummarizer struct{}

func (blockingSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type countingExtractor struct {
	inner TextExtractor
	calls int
	kind  extract.Kind
}

func (c *countingExtractor) Extract(ctx context.Context, data []byte, kind extract.Kind) (string, error) {
	c.calls++
	c.kind = kind
	return c.inner.Extract(ctx, data, kind)
}

// fetchFailingStore uploads normally but cannot read anything back.
type fetchFailingStore struct {
	*objectstore.Adapter
}

func (s fetchFailingStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	return nil, &objectstore.Error{Kind: objectstore.KindFetch, Key: key, Err: errors.New("connection reset")}
}

type listFailingBackend struct {
	*objectstore.MemoryBackend
}

func (listFailingBackend) ListKeys(ctx context.Context) ([]string, error) {
	return nil, errors.New("access denied")
}

type recorderStub struct {
	runs []*models.Run
	err  error
}

func (r *recorderStub) RecordRun(ctx context.Context, run *models.Run) error {
	r.runs = append(r.runs, run)
	return r.err
}

func textFile(name, body string) *models.UploadedFile {
	return &models.UploadedFile{Name: name, DeclaredType: extract.MIMEPlainText, Content: []byte(body)}
}

func TestRunHappyPath(t *testing.T) {
	backend := objectstore.NewMemoryBackend()
	summarizer := &fakeSummarizer{summary: "Short summary."}
	p := New(objectstore.NewAdapter(backend, nil), extract.New(), summarizer)

	res := p.Run(context.Background(), textFile("report.txt", "The quarterly report."))
	if !res.Succeeded() {
		t.Fatalf("expected done, got %s (%v)", res.Stage, res.Failure)
	}
	if res.Key != "report.txt" || res.Existed {
		t.Fatalf("unexpected key/existed: %q %v", res.Key, res.Existed)
	}
	if res.Summary != "Short summary." {
		t.Fatalf("unexpected summary: %q", res.Summary)
	}
	if summarizer.lastIn != "The quarterly report." {
		t.Fatalf("summarizer got %q", summarizer.lastIn)
	}
	if len(res.Notices) != 1 || res.Notices[0].Level != NoticeSuccess ||
		res.Notices[0].Message != "File 'report.txt' uploaded successfully to S3!" {
		t.Fatalf("unexpected notices: %+v", res.Notices)
	}
	if backend.PutCount() != 1 {
		t.Fatalf("expected one put, got %d", backend.PutCount())
	}
}

func TestRunExistingKeySkipsUpload(t *testing.T) {
	backend := objectstore.NewMemoryBackend()
	if err := backend.Put(context.Background(), "notes.txt", []byte("original notes"), extract.MIMEPlainText); err != nil {
		t.Fatalf("seed backend: %v", err)
	}
	summarizer := &fakeSummarizer{summary: "ok"}
	p := New(objectstore.NewAdapter(backend, nil), extract.New(), summarizer)

	res := p.Run(context.Background(), textFile("notes.txt", "replacement notes"))
	if !res.Succeeded() {
		t.Fatalf("expected done, got %s (%v)", res.Stage, res.Failure)
	}
	if !res.Existed {
		t.Fatalf("expected existing key to be reported")
	}
	if backend.PutCount() != 1 {
		t.Fatalf("expected no additional put, got %d", backend.PutCount())
	}
	if summarizer.lastIn != "original notes" {
		t.Fatalf("expected stored bytes to be summarized, got %q", summarizer.lastIn)
	}
	if len(res.Notices) != 1 || res.Notices[0].Level != NoticeInfo ||
		res.Notices[0].Message != "File 'notes.txt' already exists in S3." {
		t.Fatalf("unexpected notices: %+v", res.Notices)
	}
}

func TestRunFetchFailureStopsBeforeExtraction(t *testing.T) {
	store := fetchFailingStore{objectstore.NewAdapter(objectstore.NewMemoryBackend(), nil)}
	extractor := &countingExtractor{inner: extract.New()}
	summarizer := &fakeSummarizer{summary: "unused"}
	p := New(store, extractor, summarizer)

	res := p.Run(context.Background(), textFile("a.txt", "content"))
	if res.Stage != StageError || res.Failure == nil {
		t.Fatalf("expected error stage, got %s", res.Stage)
	}
	if res.Failure.Kind != FailureFetch || res.Failure.Stage != StageFetching {
		t.Fatalf("unexpected failure: %+v", res.Failure)
	}
	if extractor.calls != 0 || summarizer.calls != 0 {
		t.Fatalf("extractor/summarizer must not run: %d/%d", extractor.calls, summarizer.calls)
	}
}

func TestRunListFailure(t *testing.T) {
	backend := listFailingBackend{objectstore.NewMemoryBackend()}
	p := New(objectstore.NewAdapter(backend, nil), extract.New(), &fakeSummarizer{summary: "x"})

	res := p.Run(context.Background(), textFile("a.txt", "content"))
	if res.Failure == nil || res.Failure.Kind != FailureList {
		t.Fatalf("expected list failure, got %+v", res.Failure)
	}
	if backend.PutCount() != 0 {
		t.Fatalf("expected no put after list failure")
	}
}

func TestRunDispatchesOnDeclaredType(t *testing.T) {
	extractor := &countingExtractor{inner: extract.New()}
	p := New(objectstore.NewAdapter(objectstore.NewMemoryBackend(), nil), extractor, &fakeSummarizer{summary: "x"})

	file := &models.UploadedFile{Name: "paper.pdf", DeclaredType: extract.MIMEPDF, Content: []byte("not a pdf")}
	res := p.Run(context.Background(), file)
	if extractor.kind != extract.KindPDF {
		t.Fatalf("expected pdf dispatch, got %s", extractor.kind)
	}
	if res.Failure == nil || res.Failure.Kind != FailureExtract {
		t.Fatalf("expected extract failure, got %+v", res.Failure)
	}
	var extractErr *extract.Error
	if !errors.As(res.Failure, &extractErr) {
		t.Fatalf("expected wrapped extract error, got %v", res.Failure.Err)
	}
}

func TestRunEmptyTextIsExtractFailure(t *testing.T) {
	summarizer := &fakeSummarizer{summary: "x"}
	p := New(objectstore.NewAdapter(objectstore.NewMemoryBackend(), nil), extract.New(), summarizer)

	res := p.Run(context.Background(), textFile("empty.txt", ""))
	if res.Failure == nil || !errors.Is(res.Failure, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %+v", res.Failure)
	}
	if summarizer.calls != 0 {
		t.Fatalf("summarizer must not run for empty text")
	}
}

func TestRunSummarizeFailure(t *testing.T) {
	p := New(objectstore.NewAdapter(objectstore.NewMemoryBackend(), nil), extract.New(),
		&fakeSummarizer{err: errors.New("context length exceeded")})

	res := p.Run(context.Background(), textFile("a.txt", "content"))
	if res.Failure == nil || res.Failure.Kind != FailureSummarize || res.Failure.Stage != StageSummarizing {
		t.Fatalf("expected summarize failure, got %+v", res.Failure)
	}

	p = New(objectstore.NewAdapter(objectstore.NewMemoryBackend(), nil), extract.New(), &fakeSummarizer{})
	res = p.Run(context.Background(), textFile("b.txt", "content"))
	if res.Failure == nil || !errors.Is(res.Failure, ai.ErrEmptySummary) {
		t.Fatalf("expected empty summary failure, got %+v", res.Failure)
	}
}

func TestRunTimeoutFailsSummarize(t *testing.T) {
	recorder := &recorderStub{}
	p := New(objectstore.NewAdapter(objectstore.NewMemoryBackend(), nil), extract.New(), blockingSummarizer{},
		WithTimeout(50*time.Millisecond), WithRecorder(recorder))

	start := time.Now()
	res := p.Run(context.Background(), textFile("slow.txt", "Some text."))
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("run was not bounded by the timeout, took %v", elapsed)
	}
	if res.Failure == nil || res.Failure.Kind != FailureSummarize || res.Stage != StageError {
		t.Fatalf("expected summarize failure, got %s (%v)", res.Stage, res.Failure)
	}
	if !errors.Is(res.Failure, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", res.Failure.Err)
	}
	if len(recorder.runs) != 1 {
		t.Fatalf("expected the timed out run to be recorded, got %d", len(recorder.runs))
	}
}

func TestRunRecordsJournalEntry(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	recorder := &recorderStub{err: errors.New("database is locked")}
	p := New(objectstore.NewAdapter(objectstore.NewMemoryBackend(), nil), extract.New(),
		&fakeSummarizer{summary: "fine"}, WithRecorder(recorder), withClock(func() time.Time { return fixed }))

	res := p.Run(context.Background(), textFile("a.txt", "content"))
	if !res.Succeeded() {
		t.Fatalf("journal errors must not fail the run: %+v", res.Failure)
	}
	if len(recorder.runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(recorder.runs))
	}
	run := recorder.runs[0]
	if run.ObjectKey != "a.txt" || run.Outcome != models.RunDone || run.Summary != "fine" ||
		run.Size != 7 || !run.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected run record: %+v", run)
	}

	p = New(objectstore.NewAdapter(objectstore.NewMemoryBackend(), nil), extract.New(),
		&fakeSummarizer{err: errors.New("boom")}, WithRecorder(recorder))
	p.Run(context.Background(), textFile("b.txt", "content"))
	failed := recorder.runs[1]
	if failed.Outcome != models.RunFailed || failed.FailureKind != string(FailureSummarize) ||
		failed.Stage != string(StageSummarizing) || failed.ErrorMessage == "" {
		t.Fatalf("unexpected failed run record: %+v", failed)
	}
}
