package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"farmcopilot/internal/domain"
	"farmcopilot/internal/service"
)

// Pipeline is the part of the RAG service the handlers need.
type Pipeline interface {
	Ingest(ctx context.Context, up service.Upload) (service.UploadSummary, error)
	Answer(ctx context.Context, question string) (service.Answer, error)
	Status() service.Status
}

type Options struct {
	AllowedOrigins []string
	MaxUploadBytes int64
}

type Handler struct {
	pipeline  Pipeline
	maxUpload int64
	logger    *slog.Logger
}

// NewRouter wires the HTTP surface around p.
func NewRouter(p Pipeline, opts Options, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	h := &Handler{pipeline: p, maxUpload: opts.MaxUploadBytes, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), corsMiddleware(opts.AllowedOrigins))
	r.MaxMultipartMemory = opts.MaxUploadBytes

	r.GET("/healthz", h.healthz)
	r.GET("/status", h.status)
	r.POST("/chat", h.chat)
	r.POST("/upload", h.upload)
	return r
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.Status())
}

func (h *Handler) chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, KindInvalidRequest, "body must be JSON with a message field")
		return
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		c.JSON(http.StatusOK, ChatResponse{Response: NoMessageResponse})
		return
	}

	ans, err := h.pipeline.Answer(c.Request.Context(), msg)
	switch {
	case errors.Is(err, domain.ErrIndexNotReady):
		c.JSON(http.StatusOK, ChatResponse{Response: ans.Text})
	case errors.Is(err, domain.ErrCompletionService):
		_ = c.Error(err)
		writeError(c, http.StatusBadGateway, KindCompletion, "the language model could not answer right now")
	case err != nil:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, KindInternal, internalMessage)
	default:
		c.JSON(http.StatusOK, ChatResponse{Response: ans.Text, Sources: ans.Sources})
	}
}

func (h *Handler) upload(c *gin.Context) {
	if c.Request.ContentLength > h.maxUpload {
		writeError(c, http.StatusRequestEntityTooLarge, KindPayloadTooLarge, "upload exceeds size limit")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, KindPayloadTooLarge, "upload exceeds size limit")
			return
		}
		writeError(c, http.StatusBadRequest, KindInvalidRequest, "multipart field \"file\" is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, KindInvalidRequest, err.Error())
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(c, http.StatusBadRequest, KindInvalidRequest, err.Error())
		return
	}

	sum, err := h.pipeline.Ingest(c.Request.Context(), service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		_ = c.Error(err)
		status, kind := classify(err)
		writeError(c, status, kind, publicMessage(kind, err))
		return
	}
	c.JSON(http.StatusOK, sum)
}

func classify(err error) (int, ErrorKind) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType, KindUnsupportedMedia
	case errors.Is(err, domain.ErrExtraction):
		return http.StatusUnprocessableEntity, KindExtraction
	case errors.Is(err, domain.ErrStorage):
		return http.StatusInternalServerError, KindStorage
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

const (
	internalMessage = "internal error"
	storageMessage  = "the document could not be saved"
)

// publicMessage hides server-side detail. The full error is attached to the
// gin context and logged by requestLogger.
func publicMessage(kind ErrorKind, err error) string {
	switch kind {
	case KindStorage:
		return storageMessage
	case KindInternal:
		return internalMessage
	default:
		return err.Error()
	}
}

func writeError(c *gin.Context, status int, kind ErrorKind, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Kind: kind, Message: msg}})
}
