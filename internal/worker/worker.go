package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/storyreel/storyreel/internal/db"
	"github.com/storyreel/storyreel/internal/models"
	"github.com/storyreel/storyreel/internal/queue"
	"github.com/storyreel/storyreel/internal/services"
	"github.com/storyreel/storyreel/internal/storage"
)

type Worker struct {
	db          *db.DB
	queue       *queue.Queue
	storage     *storage.Storage
	gemini      *services.GeminiService
	ffmpeg      *services.FFmpegService
	crossfadeMs int
	uploadSem   chan struct{} // Limits concurrent storage uploads to prevent congestion
}

func New(
	database *db.DB,
	q *queue.Queue,
	stor *storage.Storage,
	geminiSvc *services.GeminiService,
	ffmpegSvc *services.FFmpegService,
	crossfadeMs int,
) *Worker {
	return &Worker{
		db:          database,
		queue:       q,
		storage:     stor,
		gemini:      geminiSvc,
		ffmpeg:      ffmpegSvc,
		crossfadeMs: crossfadeMs,
		uploadSem:   make(chan struct{}, 4),
	}
}

// uploadWithLimit wraps an upload call with a semaphore so parallel scene
// workers don't congest the storage backend.
func (w *Worker) uploadWithLimit(ctx context.Context, label string, fn func() error) error {
	select {
	case w.uploadSem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("upload cancelled while waiting for slot: %w", ctx.Err())
	}
	defer func() { <-w.uploadSem }()

	log.Printf("[Upload] %s uploading...", label)
	return fn()
}

// Start begins processing jobs from both queues. Scene generation gets the
// full concurrency; assembly is ffmpeg-heavy, so one consumer is enough.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.processQueue(ctx, queue.QueueGenerateScene, w.handleGenerateScene)
	}
	go w.processQueue(ctx, queue.QueueAssemble, w.handleAssemble)

	<-ctx.Done()
	log.Println("Worker shutting down...")
}

func (w *Worker) processQueue(ctx context.Context, queueName string, handler func(context.Context, *queue.Job) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, queueName, 5*time.Second)
			if err != nil {
				log.Printf("Error dequeuing from %s: %v", queueName, err)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			log.Printf("Processing queue job %s (type: %s, job: %s)", job.ID, job.Type, job.JobID)

			if err := handler(ctx, job); err != nil {
				log.Printf("Queue job %s failed: %v", job.ID, err)
			} else {
				log.Printf("Queue job %s completed", job.ID)
			}
		}
	}
}

// handleGenerateScene runs one scene through image generation: claim the
// scene (idempotent per-scene lock), build the effective prompt from the
// job's locked character descriptor, call Gemini, upload the image, record
// the asset, and recompute job progress. A failure marks only this scene —
// sibling scenes and the job itself carry on.
func (w *Worker) handleGenerateScene(ctx context.Context, qj *queue.Job) error {
	if qj.SceneID == nil {
		return fmt.Errorf("scene ID missing")
	}
	sceneID := *qj.SceneID

	scene, err := w.db.GetScene(ctx, sceneID)
	if err != nil {
		return fmt.Errorf("failed to get scene: %w", err)
	}

	job, err := w.db.GetJob(ctx, qj.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	if qj.Regenerate {
		// The regenerate endpoint already moved the scene to generating with
		// the new prompt; a stale queue entry for a scene no longer in that
		// state is dropped.
		if scene.Status != models.SceneStatusGenerating {
			log.Printf("Scene %s no longer pending regeneration (status=%s), skipping", sceneID, scene.Status)
			return nil
		}
	} else {
		claimed, err := w.db.ClaimScene(ctx, sceneID)
		if err != nil {
			return fmt.Errorf("failed to claim scene: %w", err)
		}
		if !claimed {
			log.Printf("Scene %s already claimed (status=%s), skipping", sceneID, scene.Status)
			return nil
		}
	}

	if err := w.db.MarkJobProcessing(ctx, job.ID); err != nil {
		log.Printf("Warning: failed to mark job processing: %v", err)
	}

	prompt := EffectivePrompt(job.CharacterFeatures, scene.Prompt)

	log.Printf("Scene %d: generating image (job %s)...", scene.SequenceIndex, job.ID)
	imageData, err := w.gemini.GenerateSceneImage(ctx, prompt)
	if err != nil {
		if dbErr := w.db.SetSceneFailed(ctx, sceneID, err.Error(), qj.Regenerate); dbErr != nil {
			log.Printf("Warning: failed to record scene failure: %v", dbErr)
		}
		w.recomputeProgress(ctx, job.ID)
		return fmt.Errorf("scene %d image generation failed: %w", scene.SequenceIndex, err)
	}

	// Each generation gets a fresh object key so a regeneration overwrites
	// the scene's URL but never a previously uploaded blob.
	storagePath := w.storage.GenerateStoragePath(job.ID,
		fmt.Sprintf("scene_%d_%s.png", scene.SequenceIndex, uuid.New().String()[:8]))

	if err := w.uploadWithLimit(ctx, fmt.Sprintf("scene_%d_image", scene.SequenceIndex), func() error {
		return w.storage.Upload(ctx, storagePath, imageData, "image/png")
	}); err != nil {
		if dbErr := w.db.SetSceneFailed(ctx, sceneID, fmt.Sprintf("image upload failed: %v", err), qj.Regenerate); dbErr != nil {
			log.Printf("Warning: failed to record scene failure: %v", dbErr)
		}
		w.recomputeProgress(ctx, job.ID)
		return fmt.Errorf("failed to upload scene image: %w", err)
	}

	imageURL := w.storage.GetPublicURL(storagePath)

	asset := &models.VideoAsset{
		ID:            uuid.New(),
		JobID:         job.ID,
		SceneID:       &sceneID,
		Type:          models.AssetTypeSceneImage,
		StorageBucket: w.storage.Bucket,
		StoragePath:   storagePath,
		URL:           imageURL,
		ContentType:   strPtr("image/png"),
		ByteSize:      int64Ptr(int64(len(imageData))),
	}
	if err := w.db.CreateAsset(ctx, asset); err != nil {
		return fmt.Errorf("failed to save scene image asset: %w", err)
	}

	if err := w.db.SetSceneComplete(ctx, sceneID, imageURL, qj.Regenerate); err != nil {
		return fmt.Errorf("failed to complete scene: %w", err)
	}

	w.recomputeProgress(ctx, job.ID)

	log.Printf("Scene %d: complete (%d bytes)", scene.SequenceIndex, len(imageData))
	return nil
}

// recomputeProgress refreshes job progress after a scene reaches a terminal
// state. The update is monotonic at the SQL level, so racing scene workers
// can't walk the bar backwards.
func (w *Worker) recomputeProgress(ctx context.Context, jobID uuid.UUID) {
	if err := w.db.UpdateJobGenerationProgress(ctx, jobID); err != nil {
		log.Printf("Warning: failed to update job progress: %v", err)
	}
}

// EffectivePrompt composes the prompt sent to image generation: the job's
// locked character descriptor prefix followed by the scene's own prompt. The
// descriptor is read-only here — scenes never fork or alter it.
func EffectivePrompt(features models.CharacterFeatures, scenePrompt string) string {
	prefix := features.PromptPrefix()
	if prefix == "" {
		return scenePrompt
	}
	return prefix + ".\n\nScene: " + strings.TrimSpace(scenePrompt)
}

// Helper functions
func strPtr(s string) *string {
	return &s
}

func int64Ptr(i int64) *int64 {
	return &i
}

func intPtr(i int) *int {
	return &i
}
