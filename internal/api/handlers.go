package api

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docsummarizer/internal/models"
	"docsummarizer/internal/pipeline"
)

const (
	DefaultMaxUploadBytes = 10 << 20 // 10 MB
	multipartOverhead     = 1 << 20
	pageTemplate          = "index.html"
)

//go:embed templates/index.html
var templatesFS embed.FS

var allowedExtensions = []string{".txt", ".pdf", ".docx"}

var (
	errFileRequired    = errors.New("file is required")
	errUnsupportedType = errors.New("unsupported file type")
	errFileTooLarge    = errors.New("file too large")
)

type Runner interface {
	Run(ctx context.Context, file *models.UploadedFile) *pipeline.Result
}

type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
}

// Handler wires HTTP routes to the summarization pipeline.
type Handler struct {
	runner         Runner
	runs           RunLister
	maxUploadBytes int64
	page           *template.Template
	log            *slog.Logger
}

// NewHandler constructs a Handler. runs may be nil when no journal is configured.
func NewHandler(runner Runner, runs RunLister, maxUploadBytes int64, log *slog.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		runner:         runner,
		runs:           runs,
		maxUploadBytes: maxUploadBytes,
		page:           template.Must(template.ParseFS(templatesFS, "templates/"+pageTemplate)),
		log:            log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(h.page)
	router.GET("/", h.index)
	router.POST("/summaries", h.summarizeForm)
	router.GET("/healthz", h.healthz)

	api := router.Group("/api")
	api.POST("/summaries", h.summarizeJSON)
	api.GET("/runs", h.listRuns)
}

type pageData struct {
	Accept  string
	Notices []pipeline.Notice
	Summary string
}

func (h *Handler) renderPage(c *gin.Context, status int, notices []pipeline.Notice, summary string) {
	c.HTML(status, pageTemplate, pageData{
		Accept:  strings.Join(allowedExtensions, ","),
		Notices: notices,
		Summary: summary,
	})
}

func (h *Handler) index(c *gin.Context) {
	h.renderPage(c, http.StatusOK, nil, "")
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// summarizeForm backs the HTML page. Pipeline failures still render the page
// with 200 so the user can pick another file.
func (h *Handler) summarizeForm(c *gin.Context) {
	file, status, err := h.readUpload(c)
	if err != nil {
		h.renderPage(c, status, []pipeline.Notice{{Level: pipeline.NoticeError, Message: uploadErrorMessage(err)}}, "")
		return
	}

	res := h.runner.Run(c.Request.Context(), file)
	notices := append([]pipeline.Notice(nil), res.Notices...)
	if res.Failure != nil {
		notices = append(notices, failureNotices(res.Failure)...)
	}
	h.renderPage(c, http.StatusOK, notices, res.Summary)
}

type summaryResponse struct {
	Key     string            `json:"key"`
	Existed bool              `json:"existed"`
	Stage   pipeline.Stage    `json:"stage"`
	Summary string            `json:"summary,omitempty"`
	Notices []pipeline.Notice `json:"notices"`
	Error   string            `json:"error,omitempty"`
}

func (h *Handler) summarizeJSON(c *gin.Context) {
	file, status, err := h.readUpload(c)
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	res := h.runner.Run(c.Request.Context(), file)
	resp := summaryResponse{
		Key:     res.Key,
		Existed: res.Existed,
		Stage:   res.Stage,
		Summary: res.Summary,
		Notices: append([]pipeline.Notice{}, res.Notices...),
	}
	if res.Failure != nil {
		failure := failureNotices(res.Failure)
		resp.Notices = append(resp.Notices, failure...)
		resp.Error = failure[len(failure)-1].Message
		c.JSON(failureStatus(res.Failure), resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run journal is disabled"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "Failed to list runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list runs failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// readUpload pulls the "file" part out of the multipart body and applies the
// extension allow-list and size cap.
func (h *Handler) readUpload(c *gin.Context) (*models.UploadedFile, int, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, errFileTooLarge
		}
		return nil, http.StatusBadRequest, errFileRequired
	}
	if !isAllowedExtension(file.Filename) {
		return nil, http.StatusBadRequest, errUnsupportedType
	}
	if file.Size > h.maxUploadBytes {
		return nil, http.StatusRequestEntityTooLarge, errFileTooLarge
	}

	content, err := readFileHeader(file)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	return &models.UploadedFile{
		Name:         filepath.Base(file.Filename),
		DeclaredType: file.Header.Get("Content-Type"),
		Content:      content,
	}, http.StatusOK, nil
}

func readFileHeader(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, errors.New("open file failed")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New("read file failed")
	}
	return data, nil
}

func isAllowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
