package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bird-analysis-service/internal/entity"
	"bird-analysis-service/internal/ingest"
	"bird-analysis-service/internal/repository/postgresql"
	"bird-analysis-service/internal/service"
)

// AnalysisService is the port over the submit/poll surface.
type AnalysisService interface {
	Submit(ctx context.Context, owner string, file io.Reader, filename string, conf float64, stride int) (entity.Job, bool, error)
	GetJob(digest, owner string) (entity.Job, error)
	VideoPath(videoID string) (string, bool)
}

// RecordStore is the port over the persistent analyses/posts store.
type RecordStore interface {
	GetAnalysis(ctx context.Context, id, userID string) (entity.Analysis, error)
	ListAnalyses(ctx context.Context, userID string, limit int) ([]entity.Analysis, error)
	CreatePost(ctx context.Context, p entity.Post) (string, error)
	ListPosts(ctx context.Context, limit int) ([]entity.Post, error)
}

type Handler struct {
	svc       AnalysisService
	records   RecordStore // nil when no store is configured
	maxUpload int64
}

func NewHandler(svc AnalysisService, records RecordStore, maxUpload int64) *Handler {
	return &Handler{svc: svc, records: records, maxUpload: maxUpload}
}

type analyzeResp struct {
	JobID  string `json:"job_id"`
	Cached bool   `json:"cached"`
}

type jobResp struct {
	JobID    string                 `json:"job_id"`
	State    entity.JobState        `json:"state"`
	Progress float64                `json:"progress"`
	Message  string                 `json:"message"`
	Result   *entity.ResultDocument `json:"result,omitempty"`
	Error    *string                `json:"error,omitempty"`
}

// Analyze godoc
// @Summary Submit a video for analysis
// @Description Hashes the upload; a cached digest returns an already-done job, otherwise a background job is queued.
// @Tags analyze
// @Accept mpfd
// @Produce json
// @Param file formData file true "video file"
// @Param conf formData number false "confidence threshold (0..1]"
// @Param stride formData integer false "frame sampling stride"
// @Success 202 {object} analyzeResp
// @Failure 400 {object} apiError
// @Failure 413 {object} apiError
// @Failure 503 {object} apiError
// @Router /analyze [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	// slack for multipart framing; the service enforces the real limit
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeErr(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeErr(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	conf, _ := strconv.ParseFloat(r.FormValue("conf"), 64)
	stride, _ := strconv.Atoi(r.FormValue("stride"))

	job, cached, err := h.svc.Submit(r.Context(), Owner(r.Context()), file, header.Filename, conf, stride)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUploadTooLarge):
			writeErr(w, http.StatusRequestEntityTooLarge, "upload too large")
		case errors.Is(err, service.ErrQueueFull):
			writeErr(w, http.StatusServiceUnavailable, "busy, try again later")
		default:
			writeErr(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, analyzeResp{JobID: job.ID, Cached: cached})
}

// Status godoc
// @Summary Poll a job
// @Tags analyze
// @Produce json
// @Param job_id path string true "job id (content digest)"
// @Success 200 {object} jobResp
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /analyze/status/{job_id} [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetJob(chi.URLParam(r, "job_id"), Owner(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotOwner):
			writeErr(w, http.StatusForbidden, "not your job")
		default:
			writeErr(w, http.StatusNotFound, "job not found")
		}
		return
	}

	writeJSON(w, http.StatusOK, jobResp{
		JobID:    job.ID,
		State:    job.State,
		Progress: job.Progress,
		Message:  job.Message,
		Result:   job.Result,
		Error:    job.Error,
	})
}

// Video godoc
// @Summary Download the annotated video
// @Tags analyze
// @Produce octet-stream
// @Param video_id path string true "video id (content digest)"
// @Success 200
// @Failure 404 {object} apiError
// @Router /analyze/video/{video_id} [get]
func (h *Handler) Video(w http.ResponseWriter, r *http.Request) {
	path, ok := h.svc.VideoPath(chi.URLParam(r, "video_id"))
	if !ok {
		writeErr(w, http.StatusNotFound, "video not found")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

// ListAnalyses godoc
// @Summary List the caller's finished analyses
// @Tags records
// @Produce json
// @Success 200 {array} entity.Analysis
// @Failure 503 {object} apiError
// @Router /analyses [get]
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeErr(w, http.StatusServiceUnavailable, "record store disabled")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	analyses, err := h.records.ListAnalyses(r.Context(), Owner(r.Context()), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "record store error")
		return
	}
	if analyses == nil {
		analyses = []entity.Analysis{}
	}
	writeJSON(w, http.StatusOK, analyses)
}

// GetAnalysis godoc
// @Summary Fetch one of the caller's analyses
// @Tags records
// @Produce json
// @Param analysis_id path string true "analysis id"
// @Success 200 {object} entity.Analysis
// @Failure 404 {object} apiError
// @Failure 503 {object} apiError
// @Router /analyses/{analysis_id} [get]
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeErr(w, http.StatusServiceUnavailable, "record store disabled")
		return
	}

	a, err := h.records.GetAnalysis(r.Context(), chi.URLParam(r, "analysis_id"), Owner(r.Context()))
	if err != nil {
		if errors.Is(err, postgresql.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "analysis not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "record store error")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type createPostDTO struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type createPostResp struct {
	ID string `json:"id"`
}

// CreatePost godoc
// @Summary Publish a finished analysis to the feed
// @Tags records
// @Accept json
// @Produce json
// @Param request body createPostDTO true "post payload"
// @Success 201 {object} createPostResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 503 {object} apiError
// @Router /posts [post]
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeErr(w, http.StatusServiceUnavailable, "record store disabled")
		return
	}

	var dto createPostDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if dto.Title == "" || len(dto.Title) > 140 {
		writeErr(w, http.StatusBadRequest, "title required, max 140 chars")
		return
	}

	path, ok := h.svc.VideoPath(dto.VideoID)
	if !ok {
		writeErr(w, http.StatusNotFound, "video not found")
		return
	}

	id, err := h.records.CreatePost(r.Context(), entity.Post{
		UserID:      Owner(r.Context()),
		VideoID:     dto.VideoID,
		MP4Path:     path,
		Title:       dto.Title,
		Description: dto.Description,
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "record store error")
		return
	}
	writeJSON(w, http.StatusCreated, createPostResp{ID: id})
}

// ListPosts godoc
// @Summary List the post feed
// @Tags records
// @Produce json
// @Success 200 {array} entity.Post
// @Failure 503 {object} apiError
// @Router /posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	if h.records == nil {
		writeErr(w, http.StatusServiceUnavailable, "record store disabled")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	posts, err := h.records.ListPosts(r.Context(), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "record store error")
		return
	}
	if posts == nil {
		posts = []entity.Post{}
	}
	writeJSON(w, http.StatusOK, posts)
}
