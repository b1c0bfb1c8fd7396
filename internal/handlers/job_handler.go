package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/services/jobs"
)

// JobHandler handles job submission and query API requests
type JobHandler struct {
	orchestrator *jobs.Orchestrator
	assembler    *jobs.ReportAssembler
	config       *common.Config
	logger       arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(orchestrator *jobs.Orchestrator, assembler *jobs.ReportAssembler, config *common.Config, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		orchestrator: orchestrator,
		assembler:    assembler,
		config:       config,
		logger:       logger,
	}
}

// SubmitJobHandler accepts a new identification job.
// POST /api/jobs (multipart/form-data: image, keywords, notify)
// Returns 202 with the job ID; the pipeline runs asynchronously.
func (h *JobHandler) SubmitJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.config.Server.MaxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid multipart form or upload too large")
		return
	}

	req := interfaces.IdentifyRequest{
		Keywords: strings.TrimSpace(r.FormValue("keywords")),
	}
	imageName := ""

	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			WriteError(w, http.StatusBadRequest, "Failed to read uploaded image")
			return
		}
		req.Image = data
		req.ImageMIME = header.Header.Get("Content-Type")
		if req.ImageMIME == "" {
			req.ImageMIME = http.DetectContentType(data)
		}
		imageName = header.Filename
	} else if err != http.ErrMissingFile {
		WriteError(w, http.StatusBadRequest, "Invalid image upload")
		return
	}

	if req.Empty() {
		WriteError(w, http.StatusBadRequest, "Submit an image, keywords, or both")
		return
	}

	job, err := h.orchestrator.Submit(r.Context(), req, imageName, strings.TrimSpace(r.FormValue("notify")))
	if err != nil {
		if errors.Is(err, interfaces.ErrInvalidInput) {
			WriteError(w, http.StatusBadRequest, "Submitted input could not be processed")
			return
		}
		h.logger.Error().Err(err).Msg("Job submission failed")
		WriteError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// ListJobsHandler returns jobs ordered by creation time.
// GET /api/jobs?limit=50&offset=0&status=completed
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	opts := &interfaces.JobListOptions{
		Status: models.JobStatus(r.URL.Query().Get("status")),
		Limit:  50,
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			opts.Limit = parsed
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			opts.Offset = parsed
		}
	}

	list, err := h.orchestrator.ListJobs(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJobHandler returns the current state of one job.
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.orchestrator.GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// ReportHandler returns the finished report, as JSON by default or rendered
// HTML with ?format=html.
// GET /api/jobs/{id}/report
func (h *JobHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := jobIDFromPath(strings.TrimSuffix(r.URL.Path, "/report"))
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.orchestrator.GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if job.Status != models.JobStatusCompleted || job.Result == nil {
		WriteError(w, http.StatusConflict, "Report is not ready: job status is "+string(job.Status))
		return
	}

	if r.URL.Query().Get("format") == "html" {
		html, err := h.assembler.RenderHTML(job.Result)
		if err != nil {
			h.logger.Error().Err(err).Str("job_id", jobID).Msg("Report rendering failed")
			WriteError(w, http.StatusInternalServerError, "Failed to render report")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(html))
		return
	}

	WriteJSON(w, http.StatusOK, job.Result)
}

// jobIDFromPath extracts the job ID from /api/jobs/{id} style paths
func jobIDFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/jobs/")
	if idx := strings.Index(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
