package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"deepresearch/backend/internal/config"
	"deepresearch/backend/internal/reports"
	"deepresearch/backend/internal/research"
)

type researchRunner interface {
	Run(ctx context.Context, req research.Request, onProgress func(research.Progress)) (research.Result, error)
}

type reportStore interface {
	Save(ctx context.Context, report reports.Report) (reports.Report, error)
	Get(ctx context.Context, id string) (reports.Report, error)
	List(ctx context.Context, limit int) ([]reports.Report, error)
}

type Handler struct {
	cfg     config.Config
	runner  researchRunner
	reports reportStore
	logger  *zap.Logger
}

func NewHandler(cfg config.Config, runner researchRunner, store reportStore, logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Handler{cfg: cfg, runner: runner, reports: store, logger: logger}
}

func (h Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type researchRequest struct {
	Topic             string `json:"topic"`
	InitialQueryCount int    `json:"initialQueryCount"`
	MaxLoops          int    `json:"maxLoops"`
	Mode              string `json:"mode"`
}

func (h Handler) CreateResearch(w http.ResponseWriter, r *http.Request) {
	var body researchRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(body.Topic) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "topic is required")
		return
	}
	if body.InitialQueryCount < 0 || body.MaxLoops < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "initialQueryCount and maxLoops must not be negative")
		return
	}

	req := research.Request{
		Topic:             strings.TrimSpace(body.Topic),
		InitialQueryCount: body.InitialQueryCount,
		MaxLoops:          body.MaxLoops,
	}
	if strings.TrimSpace(body.Mode) != "" {
		req = research.RequestForMode(req, research.ParseMode(body.Mode))
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming_unsupported", "server does not support streaming")
			return
		}
		h.streamResearch(r.Context(), w, flusher, req)
		return
	}

	trace := reports.NewTraceCollector()
	result, err := h.runner.Run(r.Context(), req, trace.AppendProgress)
	if err != nil {
		trace.MarkStopped(failureMessage(err))
		status, code := statusForError(err)
		writeError(w, status, code, failureMessage(err))
		return
	}
	trace.MarkDone()
	writeJSON(w, http.StatusOK, h.archive(r.Context(), result, trace))
}

func (h Handler) streamResearch(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, req research.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	_ = writeSSEEvent(w, map[string]any{
		"type":     "metadata",
		"topic":    req.Topic,
		"provider": h.cfg.LLMProvider,
	})
	flusher.Flush()

	trace := reports.NewTraceCollector()
	result, err := h.runner.Run(ctx, req, func(progress research.Progress) {
		trace.AppendProgress(progress)
		_ = writeSSEEvent(w, progressEventData(progress))
		flusher.Flush()
	})
	if err != nil {
		trace.MarkStopped(failureMessage(err))
		h.logger.Warn("research stream failed",
			zap.String("kind", string(research.Kind(err))),
			zap.Error(err),
		)
		_ = writeSSEEvent(w, map[string]any{"type": "error", "message": failureMessage(err)})
		_ = writeSSEEvent(w, map[string]any{"type": "done"})
		flusher.Flush()
		return
	}
	trace.MarkDone()

	for _, warning := range result.Warnings {
		_ = writeSSEEvent(w, map[string]any{
			"type":    "warning",
			"scope":   "research",
			"message": warning,
		})
	}
	report := h.archive(ctx, result, trace)
	_ = writeSSEEvent(w, map[string]any{"type": "result", "report": report})
	_ = writeSSEEvent(w, map[string]any{"type": "done"})
	flusher.Flush()
}

// archive stores the finished report. A failed save is logged and the
// report is still returned without an id.
func (h Handler) archive(ctx context.Context, result research.Result, trace *reports.TraceCollector) reports.Report {
	report := reports.FromResult(result, h.cfg.LLMProvider)
	report.Trace = trace.Snapshot()
	if h.reports == nil {
		report.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
		return report
	}
	saved, err := h.reports.Save(ctx, report)
	if err != nil {
		h.logger.Error("failed to archive report", zap.String("topic", result.Topic), zap.Error(err))
		report.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
		return report
	}
	return saved
}

func (h Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "archive_unavailable", "report archive is not configured")
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	items, err := h.reports.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list reports", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": items})
}

func (h Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "archive_unavailable", "report archive is not configured")
		return
	}
	report, err := h.reports.Get(r.Context(), chi.URLParam(r, "reportID"))
	if errors.Is(err, reports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "report not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to read report", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to read report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, research.ErrEmptyTopic):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "research_timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "research_canceled"
	case research.Kind(err) == research.KindGeneration:
		return http.StatusBadGateway, "generation_failed"
	default:
		return http.StatusInternalServerError, "research_failed"
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "research timed out"
	case errors.Is(err, context.Canceled):
		return "research request canceled"
	case errors.Is(err, research.ErrEmptyTopic):
		return err.Error()
	case research.Kind(err) == research.KindGeneration:
		return "failed to write the final answer"
	default:
		return fmt.Sprintf("research failed: %v", err)
	}
}
