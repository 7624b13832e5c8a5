package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storyreel/storyreel/internal/db"
	"github.com/storyreel/storyreel/internal/models"
	"github.com/storyreel/storyreel/internal/queue"
	"github.com/storyreel/storyreel/internal/services"
	"github.com/storyreel/storyreel/internal/storage"
)

// Scene count bounds for job creation
const (
	minSceneCount     = 3
	maxSceneCount     = 15
	defaultSceneCount = 5
	defaultDuration   = 30
)

type Handler struct {
	db              *db.DB
	queue           *queue.Queue
	storage         *storage.Storage
	openai          *services.OpenAIService
	motionIntensity float64 // default for jobs that don't override it
}

func NewHandler(database *db.DB, q *queue.Queue, stor *storage.Storage, openaiSvc *services.OpenAIService, defaultMotionIntensity float64) *Handler {
	return &Handler{
		db:              database,
		queue:           q,
		storage:         stor,
		openai:          openaiSvc,
		motionIntensity: defaultMotionIntensity,
	}
}

// CreateJob handles POST /v1/jobs. Planning runs inline: one structured LLM
// call produces the scenes and the locked character descriptor, then job and
// scenes are persisted atomically. A failed plan persists nothing.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req models.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Concept == "" {
		respondError(w, http.StatusBadRequest, "Concept is required")
		return
	}

	duration := defaultDuration
	if req.DurationSeconds != nil {
		duration = *req.DurationSeconds
	}
	if duration <= 0 {
		respondError(w, http.StatusBadRequest, "Duration must be positive")
		return
	}

	sceneCount := defaultSceneCount
	if req.SceneCount != nil {
		sceneCount = *req.SceneCount
	}
	if sceneCount < minSceneCount || sceneCount > maxSceneCount {
		respondError(w, http.StatusBadRequest, "Scene count must be between 3 and 15")
		return
	}

	motion := h.motionIntensity
	if req.MotionIntensity != nil {
		motion = *req.MotionIntensity
	}
	if motion < 0 || motion > 1 {
		respondError(w, http.StatusBadRequest, "Motion intensity must be between 0 and 1")
		return
	}

	plan, err := h.openai.GenerateScenePlan(r.Context(), req.Concept, req.BaseImageURL, duration, sceneCount)
	if err != nil {
		respondError(w, http.StatusBadGateway, "Scene planning failed: "+err.Error())
		return
	}

	job := &models.VideoJob{
		ID:                uuid.New(),
		Concept:           req.Concept,
		BaseImageURL:      req.BaseImageURL,
		DurationSeconds:   duration,
		SceneCount:        sceneCount,
		Status:            models.JobStatusQueued,
		Progress:          0,
		CharacterFeatures: plan.CharacterFeatures,
		MotionIntensity:   motion,
	}

	scenes := make([]models.VideoScene, len(plan.Scenes))
	for i, planned := range plan.Scenes {
		scenes[i] = models.VideoScene{
			ID:            uuid.New(),
			JobID:         job.ID,
			SequenceIndex: i,
			Description:   planned.Description,
			Prompt:        planned.Prompt,
			Status:        models.SceneStatusPending,
		}
	}

	if err := h.db.CreateJobWithScenes(r.Context(), job, scenes); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateJobResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// GenerateAllScenes handles POST /v1/jobs/{id}/generate — enqueues image
// generation for every scene still pending.
func (h *Handler) GenerateAllScenes(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	if _, err := h.db.GetJob(r.Context(), jobID); err != nil {
		respondFromError(w, err)
		return
	}

	scenes, err := h.db.GetJobScenes(r.Context(), jobID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get scenes")
		return
	}

	enqueued := 0
	for _, scene := range scenes {
		if scene.Status != models.SceneStatusPending {
			continue
		}
		if err := h.queue.EnqueueGenerateScene(r.Context(), jobID, scene.ID, false); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to enqueue scene generation")
			return
		}
		enqueued++
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   jobID,
		"enqueued": enqueued,
	})
}

// RegenerateScene handles POST /v1/scenes/{id}/regenerate. The scene must be
// terminal (complete or failed) — a scene mid-generation can't be regenerated.
func (h *Handler) RegenerateScene(w http.ResponseWriter, r *http.Request) {
	sceneID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid scene ID")
		return
	}

	var req models.RegenerateSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Prompt == "" {
		respondError(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	scene, err := h.db.GetScene(r.Context(), sceneID)
	if err != nil {
		respondFromError(w, err)
		return
	}

	claimed, err := h.db.ClaimSceneForRegeneration(r.Context(), sceneID, req.Prompt)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update scene")
		return
	}
	if !claimed {
		respondError(w, http.StatusConflict, "Scene is currently generating and cannot be regenerated")
		return
	}

	if err := h.queue.EnqueueGenerateScene(r.Context(), scene.JobID, sceneID, true); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue regeneration")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"scene_id": sceneID,
		"status":   models.SceneStatusGenerating,
	})
}

// ReorderScenes handles PUT /v1/jobs/{id}/scenes/order. The body must list
// every scene of the job exactly once; indices are rewritten to list order
// and nothing else changes.
func (h *Handler) ReorderScenes(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	var req models.ReorderScenesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.SceneIDs) == 0 {
		respondError(w, http.StatusBadRequest, "scene_ids is required")
		return
	}

	if err := h.db.ReorderScenes(r.Context(), jobID, req.SceneIDs); err != nil {
		respondFromError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"job_id": jobID,
		"order":  req.SceneIDs,
	})
}

// GetJob handles GET /v1/jobs/{id} — the polled status read. Returns the job
// plus its scenes ordered by sequence index.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.db.GetJob(r.Context(), jobID)
	if err != nil {
		respondFromError(w, err)
		return
	}

	scenes, err := h.db.GetJobScenes(r.Context(), jobID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get scenes")
		return
	}

	respondJSON(w, http.StatusOK, models.JobResponse{
		VideoJob: *job,
		Scenes:   scenes,
	})
}

// AssembleJob handles POST /v1/jobs/{id}/assemble. The incomplete-scenes
// precondition is checked here so a premature request fails fast with the
// job untouched; the worker re-checks before doing any work.
func (h *Handler) AssembleJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	if _, err := h.db.GetJob(r.Context(), jobID); err != nil {
		respondFromError(w, err)
		return
	}

	incomplete, err := h.db.CountIncompleteScenes(r.Context(), jobID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to check scenes")
		return
	}
	if incomplete > 0 {
		respondFromError(w, &models.IncompleteScenesError{JobID: jobID.String(), Incomplete: incomplete})
		return
	}

	if err := h.queue.EnqueueAssemble(r.Context(), jobID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue assembly")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": jobID,
		"status": models.JobStatusProcessing,
	})
}

// DownloadJob handles GET /v1/jobs/{id}/download — redirects to a signed URL
// for the final video.
func (h *Handler) DownloadJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.db.GetJob(r.Context(), jobID)
	if err != nil {
		respondFromError(w, err)
		return
	}

	if job.Status != models.JobStatusComplete || job.VideoURL == nil {
		respondError(w, http.StatusNotFound, "Video not ready")
		return
	}

	asset, err := h.db.GetLatestFinalVideoAsset(r.Context(), jobID)
	if err != nil {
		respondFromError(w, err)
		return
	}

	// Signed URL valid for 1 hour
	signedURL, err := h.storage.GetSignedURL(r.Context(), asset.StoragePath, 3600)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate download URL")
		return
	}

	http.Redirect(w, r, signedURL, http.StatusTemporaryRedirect)
}

// respondFromError maps the failure taxonomy onto HTTP statuses.
func respondFromError(w http.ResponseWriter, err error) {
	var (
		validationErr *models.ValidationError
		notFoundErr   *models.NotFoundError
		genErr        *models.GenerationError
		incompleteErr *models.IncompleteScenesError
	)

	switch {
	case errors.As(err, &validationErr):
		respondError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &notFoundErr):
		respondError(w, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &genErr):
		respondError(w, http.StatusBadGateway, genErr.Error())
	case errors.As(err, &incompleteErr):
		respondError(w, http.StatusConflict, incompleteErr.Error())
	default:
		respondError(w, http.StatusInternalServerError, "Internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
