package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/storyreel/storyreel/internal/models"
	"github.com/storyreel/storyreel/internal/queue"
	"github.com/storyreel/storyreel/internal/services"
)

// renderParallelism bounds how many ffmpeg render processes an assembly runs
// at once. Clip renders are independent; only the final concat is sequential.
const renderParallelism = 2

// handleAssemble is the queue entry point for final video assembly.
func (w *Worker) handleAssemble(ctx context.Context, qj *queue.Job) error {
	return w.AssembleJob(ctx, qj.JobID)
}

// AssembleJob turns a job's completed scene images into the final video:
// download stills, render one Ken Burns clip per scene, crossfade-concat,
// upload, mark complete. The precondition (every scene complete) fails fast
// with no state change; any later failure marks the job failed and still
// removes the working area.
func (w *Worker) AssembleJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := w.db.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	scenes, err := w.db.GetJobScenes(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get scenes: %w", err)
	}
	if len(scenes) == 0 {
		return &models.NotFoundError{Resource: "scenes for job", ID: jobID.String()}
	}

	// Precondition checked before any state is touched so a premature
	// attempt is a no-op.
	if err := checkScenesAssemblable(jobID, scenes); err != nil {
		return err
	}

	log.Printf("Assembling job %s (%d scenes)", jobID, len(scenes))

	// First checkpoint also clears video_url and error_message from any
	// prior attempt, in the same write as the status flip.
	if err := w.db.StartAssembly(ctx, jobID); err != nil {
		return fmt.Errorf("failed to start assembly: %w", err)
	}

	wa, err := w.ffmpeg.NewWorkArea(jobID)
	if err != nil {
		encErr := &models.EncodingError{Step: "workarea", Err: err}
		w.failAssembly(ctx, jobID, encErr)
		return encErr
	}
	defer wa.Remove()

	if err := w.assembleInWorkArea(ctx, job, scenes, wa); err != nil {
		w.failAssembly(ctx, jobID, err)
		return err
	}

	log.Printf("Assembly complete for job %s", jobID)
	return nil
}

// checkScenesAssemblable verifies every scene is complete with a resolvable
// image URL. Returns an IncompleteScenesError counting the scenes that are
// not, nil when the job is ready.
func checkScenesAssemblable(jobID uuid.UUID, scenes []models.VideoScene) error {
	incomplete := 0
	for _, s := range scenes {
		if s.Status != models.SceneStatusComplete || s.ImageURL == nil || *s.ImageURL == "" {
			incomplete++
		}
	}
	if incomplete > 0 {
		return &models.IncompleteScenesError{JobID: jobID.String(), Incomplete: incomplete}
	}
	return nil
}

// failAssembly records the terminal failure on the job. Assembly is never
// auto-retried; a later explicit re-invocation starts fresh.
func (w *Worker) failAssembly(ctx context.Context, jobID uuid.UUID, cause error) {
	if err := w.db.SetJobFailed(ctx, jobID, cause.Error()); err != nil {
		log.Printf("Warning: failed to record assembly failure for job %s: %v", jobID, err)
	}
}

func (w *Worker) assembleInWorkArea(ctx context.Context, job *models.VideoJob, scenes []models.VideoScene, wa *services.WorkArea) error {
	clipDur := services.ClipDurationSeconds(job.DurationSeconds, len(scenes))

	// Render one clip per scene, bounded parallel. Progress walks 10 → 80 as
	// clips finish, in completion order — monotonic either way.
	clipPaths := make([]string, len(scenes))
	var done int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(renderParallelism)

	for i := range scenes {
		scene := scenes[i]
		idx := i
		g.Go(func() error {
			stillPath := wa.Path(fmt.Sprintf("scene_%d.png", scene.SequenceIndex))
			clipPath := wa.Path(fmt.Sprintf("clip_%d.mp4", scene.SequenceIndex))

			imageData, err := w.storage.FetchURL(gctx, *scene.ImageURL)
			if err != nil {
				return &models.EncodingError{Step: "download", Err: fmt.Errorf("scene %d: %w", scene.SequenceIndex, err)}
			}
			if err := os.WriteFile(stillPath, imageData, 0644); err != nil {
				return &models.EncodingError{Step: "download", Err: fmt.Errorf("scene %d: %w", scene.SequenceIndex, err)}
			}

			effect := services.EffectForIndex(scene.SequenceIndex)
			if err := w.ffmpeg.RenderKenBurnsClip(gctx, stillPath, clipPath, clipDur, effect, job.MotionIntensity); err != nil {
				return &models.EncodingError{Step: "render", Err: fmt.Errorf("scene %d: %w", scene.SequenceIndex, err)}
			}

			// The still has served its purpose once the clip exists
			w.ffmpeg.Cleanup(stillPath)

			clipPaths[idx] = clipPath

			n := atomic.AddInt64(&done, 1)
			progress := 10 + int(70*n/int64(len(scenes)))
			if err := w.db.SetJobProgress(gctx, job.ID, progress); err != nil {
				log.Printf("Warning: failed to update assembly progress: %v", err)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	// Concatenation is strictly sequential and only starts after every
	// render is done. A single-scene job skips it entirely.
	outputPath := wa.Path("final.mp4")
	if len(clipPaths) == 1 {
		if err := w.ffmpeg.CopyClip(clipPaths[0], outputPath); err != nil {
			return &models.EncodingError{Step: "concat", Err: err}
		}
	} else {
		if err := w.ffmpeg.ConcatenateWithCrossfades(ctx, clipPaths, outputPath, clipDur, w.crossfadeMs); err != nil {
			return &models.EncodingError{Step: "concat", Err: err}
		}
	}

	if err := w.db.SetJobProgress(ctx, job.ID, 80); err != nil {
		log.Printf("Warning: failed to update assembly progress: %v", err)
	}

	// Probe the real output duration for the asset record (best effort)
	var durationMs *int
	if ms, err := w.ffmpeg.GetVideoDuration(ctx, outputPath); err != nil {
		log.Printf("Warning: could not measure final video duration: %v", err)
	} else {
		durationMs = intPtr(ms)
	}

	// Fresh object key per assembly so a re-assembly never overwrites the
	// blob that earlier asset rows still reference.
	storagePath := w.storage.GenerateStoragePath(job.ID,
		fmt.Sprintf("final_%s.mp4", uuid.New().String()[:8]))
	if err := w.uploadWithLimit(ctx, "final_video", func() error {
		return w.storage.UploadFile(ctx, storagePath, outputPath, "video/mp4")
	}); err != nil {
		return &models.EncodingError{Step: "upload", Err: err}
	}

	videoURL := w.storage.GetPublicURL(storagePath)

	var byteSize *int64
	if info, err := os.Stat(outputPath); err == nil {
		byteSize = int64Ptr(info.Size())
	}

	asset := &models.VideoAsset{
		ID:            uuid.New(),
		JobID:         job.ID,
		Type:          models.AssetTypeFinalVideo,
		StorageBucket: w.storage.Bucket,
		StoragePath:   storagePath,
		URL:           videoURL,
		ContentType:   strPtr("video/mp4"),
		ByteSize:      byteSize,
		DurationMs:    durationMs,
	}
	if err := w.db.CreateAsset(ctx, asset); err != nil {
		return &models.EncodingError{Step: "upload", Err: fmt.Errorf("failed to save final video asset: %w", err)}
	}

	if err := w.db.SetJobProgress(ctx, job.ID, 90); err != nil {
		log.Printf("Warning: failed to update assembly progress: %v", err)
	}

	if err := w.db.SetJobComplete(ctx, job.ID, videoURL); err != nil {
		return &models.EncodingError{Step: "upload", Err: fmt.Errorf("failed to complete job: %w", err)}
	}

	return nil
}
