package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/receiptwise/receiptmatch-backend/internal/api/dto"
	"github.com/receiptwise/receiptmatch-backend/internal/application/service"
)

// AutoMatchHandler handles auto-match job HTTP requests.
type AutoMatchHandler struct {
	*Base
	service *service.MatchService
}

// NewAutoMatchHandler creates a new auto-match handler.
func NewAutoMatchHandler(svc *service.MatchService) *AutoMatchHandler {
	return &AutoMatchHandler{
		Base:    &Base{},
		service: svc,
	}
}

// Start handles POST /api/automatch - starts a new auto-match job.
func (h *AutoMatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req dto.StartAutoMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	jobID, err := h.service.StartAutoMatch(r.Context(), service.AutoMatchRequest{
		Owner:       req.Owner,
		AllOwners:   req.AllOwners,
		MaxReceipts: req.MaxReceipts,
		ReceiptID:   req.ReceiptID,
	})
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusAccepted, dto.AutoMatchJobStartedResponse{
		JobID:  jobID,
		Status: string(service.StatusPending),
	})
}

// Get handles GET /api/automatch/{jobId} - gets job status.
func (h *AutoMatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("job ID is required"))
		return
	}

	job, err := h.service.GetJob(jobID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, toJobResponse(job))
}

// ListActive handles GET /api/automatch/active - lists running jobs.
func (h *AutoMatchHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	jobs := h.service.ListActiveJobs()

	response := dto.AutoMatchJobListResponse{
		Jobs:  make([]dto.AutoMatchJobResponse, 0, len(jobs)),
		Count: len(jobs),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, toJobResponse(job))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// ListAll handles GET /api/automatch - lists all jobs.
func (h *AutoMatchHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	jobs := h.service.ListAllJobs()

	response := dto.AutoMatchJobListResponse{
		Jobs:  make([]dto.AutoMatchJobResponse, 0, len(jobs)),
		Count: len(jobs),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, toJobResponse(job))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// Cancel handles DELETE /api/automatch/{jobId} - cancels a job.
func (h *AutoMatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("job ID is required"))
		return
	}

	if err := h.service.CancelJob(jobID); err != nil {
		h.WriteAppError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.MessageResponse{
		Message: "auto-match job cancelled",
	})
}

// toJobResponse converts a service job to its API shape.
func toJobResponse(job *service.AutoMatchJob) dto.AutoMatchJobResponse {
	response := dto.AutoMatchJobResponse{
		JobID:     job.ID,
		Owner:     job.Owner,
		AllOwners: job.Request.AllOwners,
		Status:    string(job.Status),
		StartedAt: job.StartedAt.Format(time.RFC3339),
		Progress: dto.AutoMatchProgressResponse{
			CurrentPhase:      job.Progress.CurrentPhase,
			TotalReceipts:     job.Progress.TotalReceipts,
			ProcessedReceipts: job.Progress.ProcessedReceipts,
			ProposedCount:     job.Progress.ProposedCount,
			FailedCount:       job.Progress.FailedCount,
			LastUpdate:        job.Progress.LastUpdate.Format(time.RFC3339),
		},
	}

	if job.CompletedAt != nil {
		completedAt := job.CompletedAt.Format(time.RFC3339)
		response.CompletedAt = &completedAt
	}

	for _, result := range job.Results {
		response.Results = append(response.Results, dto.AutoMatchResultResponse{
			Owner:              result.Owner,
			Processed:          result.Processed,
			Proposed:           result.Proposed,
			TransactionMatches: result.TransactionMatches,
			GroupMatches:       result.GroupMatches,
			Ambiguous:          result.Ambiguous,
			NoCandidates:       result.NoCandidates,
			BelowThreshold:     result.BelowThreshold,
			Failed:             result.Failed,
			DurationMillis:     result.Duration.Milliseconds(),
		})
	}

	if job.Error != nil {
		errMsg := job.Error.Error()
		response.Error = &errMsg
	}
	return response
}
