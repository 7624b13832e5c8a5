package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Motion effect types — each scene clip gets a pan/zoom combined with a subtle
// breathing pulse
// ---------------------------------------------------------------------------

// ClipEffect defines the type of Ken Burns motion applied to a still image
type ClipEffect string

const (
	EffectZoomIn   ClipEffect = "zoom_in"   // Push toward center
	EffectZoomOut  ClipEffect = "zoom_out"  // Starts zoomed, pulls back wide
	EffectPanDown  ClipEffect = "pan_down"  // Drifts top to bottom
	EffectPanUp    ClipEffect = "pan_up"    // Drifts bottom to top
	EffectPanLeft  ClipEffect = "pan_left"  // Drifts right to left
	EffectPanRight ClipEffect = "pan_right" // Drifts left to right
)

// effectPool is cycled through by sequence index so consecutive scenes never
// repeat the same motion.
var effectPool = []ClipEffect{
	EffectZoomIn,
	EffectPanRight,
	EffectZoomOut,
	EffectPanDown,
	EffectPanLeft,
	EffectPanUp,
}

// EffectForIndex picks the motion effect for a scene by its sequence index.
// Deterministic so a re-run of assembly produces the same motion per scene.
func EffectForIndex(i int) ClipEffect {
	if i < 0 {
		i = -i
	}
	return effectPool[i%len(effectPool)]
}

// Rendering constants — 1080x1920 portrait at 30fps by default
const (
	defaultWidth  = 1080
	defaultHeight = 1920
	videoFPS      = 30

	// Breathing pulse: a subtle zoom oscillation layered on top of the primary
	// motion, scaled down with motion intensity so a calm video stays calm.
	// Base amplitude ±0.03 zoom at ~0.12 rad/frame ≈ one breath every ~2s.
	breathAmplitude = 0.03
	breathFrequency = 0.12

	// Maximum extra zoom at full motion intensity: 1.0 → 1.2x
	maxZoomRange = 0.2
)

// Resolution is the output frame size for rendered clips.
type Resolution struct {
	Width  int
	Height int
}

// ParseResolution parses "WIDTHxHEIGHT" (e.g. "1080x1920"), falling back to
// the default portrait resolution on malformed input.
func ParseResolution(s string) Resolution {
	var w, h int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%dx%d", &w, &h); err == nil && w > 0 && h > 0 {
		return Resolution{Width: w, Height: h}
	}
	return Resolution{Width: defaultWidth, Height: defaultHeight}
}

// ---------------------------------------------------------------------------
// FFmpegService
// ---------------------------------------------------------------------------

type FFmpegService struct {
	tempRoot   string
	resolution Resolution
}

func NewFFmpegService(tempRoot string, res Resolution) *FFmpegService {
	if err := os.MkdirAll(tempRoot, 0755); err != nil {
		panic(fmt.Sprintf("failed to create temp root: %v", err))
	}
	if res.Width == 0 || res.Height == 0 {
		res = Resolution{Width: defaultWidth, Height: defaultHeight}
	}

	return &FFmpegService{
		tempRoot:   tempRoot,
		resolution: res,
	}
}

// ---------------------------------------------------------------------------
// WorkArea — the isolated per-assembly temp directory
// ---------------------------------------------------------------------------

// WorkArea is a uniquely named directory holding one assembly invocation's
// intermediate files. It is exclusive to that invocation and must be removed
// on every exit path via Remove.
type WorkArea struct {
	Dir string
}

// NewWorkArea creates an isolated working directory for one assembly run.
func (s *FFmpegService) NewWorkArea(jobID uuid.UUID) (*WorkArea, error) {
	dir, err := os.MkdirTemp(s.tempRoot, fmt.Sprintf("assemble_%s_", jobID.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to create work area: %w", err)
	}
	return &WorkArea{Dir: dir}, nil
}

// Path returns the path of a named file inside the work area.
func (wa *WorkArea) Path(filename string) string {
	return filepath.Join(wa.Dir, filename)
}

// Remove deletes the work area and everything in it. Best-effort: failures
// are logged, never raised — cleanup must not mask the real error on a
// failing assembly.
func (wa *WorkArea) Remove() {
	if err := os.RemoveAll(wa.Dir); err != nil {
		log.Printf("[FFmpeg] WARNING: failed to remove work area %s: %v", wa.Dir, err)
	}
}

// ClipDurationSeconds computes the fixed per-scene clip length:
// max(3, floor(totalDuration / sceneCount)).
func ClipDurationSeconds(totalDurationSeconds, sceneCount int) int {
	if sceneCount <= 0 {
		return 3
	}
	d := totalDurationSeconds / sceneCount
	if d < 3 {
		return 3
	}
	return d
}

// RenderKenBurnsClip creates a silent video clip of durationSec seconds from
// a still image, applying the given motion effect. intensity in [0,1] scales
// both the zoom range (1.0 → 1.0+0.2·intensity) and the pan distance; out of
// range values are clamped.
func (s *FFmpegService) RenderKenBurnsClip(ctx context.Context, imagePath, outputPath string, durationSec int, effect ClipEffect, intensity float64) error {
	vf := buildMotionFilter(effect, durationSec, intensity, s.resolution)

	log.Printf("[FFmpeg] Rendering clip effect=%s duration=%ds intensity=%.2f", effect, durationSec, intensity)

	args := []string{
		"-i", imagePath, // Single image input (zoompan emits the frames)
		"-vf", vf,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-an", // Scene clips are silent
		"-y",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg render clip failed (effect=%s): %w", effect, err)
	}

	return nil
}

// buildMotionFilter constructs the zoompan filter for a given effect. The
// zoom endpoint and pan traverse both scale linearly with motion intensity,
// and a breathing pulse (also intensity-scaled) is baked into the zoom
// expression so the frame never sits perfectly still.
func buildMotionFilter(effect ClipEffect, durationSec int, intensity float64, res Resolution) string {
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}

	totalFrames := durationSec * videoFPS
	if totalFrames < videoFPS {
		totalFrames = videoFPS // minimum 1 second
	}

	zoomRange := maxZoomRange * intensity
	breathExpr := fmt.Sprintf("%.4f*sin(on*%.3f)", breathAmplitude*intensity, breathFrequency)

	// Center expressions (reused):
	//   cx = "iw/2-(iw/zoom/2)"  — horizontally centered
	//   cy = "ih/2-(ih/zoom/2)"  — vertically centered
	// Pan range (iw-iw/zoom) grows with zoom, so pan distance already tracks
	// intensity through the zoom level; the traverse fraction adds a second
	// proportional term.
	var zExpr, xExpr, yExpr string

	switch effect {

	case EffectZoomIn:
		zExpr = fmt.Sprintf("1.0+%.4f*on/%d+%s", zoomRange, totalFrames, breathExpr)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = "ih/2-(ih/zoom/2)"

	case EffectZoomOut:
		zExpr = fmt.Sprintf("%.4f-%.4f*on/%d+%s", 1.0+zoomRange, zoomRange, totalFrames, breathExpr)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = "ih/2-(ih/zoom/2)"

	case EffectPanDown:
		zExpr = fmt.Sprintf("%.4f+%s", 1.0+zoomRange, breathExpr)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = fmt.Sprintf("(ih-ih/zoom)*%.4f*on/%d", intensity, totalFrames)

	case EffectPanUp:
		zExpr = fmt.Sprintf("%.4f+%s", 1.0+zoomRange, breathExpr)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = fmt.Sprintf("(ih-ih/zoom)*%.4f*(1-on/%d)", intensity, totalFrames)

	case EffectPanRight:
		zExpr = fmt.Sprintf("%.4f+%s", 1.0+zoomRange, breathExpr)
		xExpr = fmt.Sprintf("(iw-iw/zoom)*%.4f*on/%d", intensity, totalFrames)
		yExpr = "ih/2-(ih/zoom/2)"

	case EffectPanLeft:
		zExpr = fmt.Sprintf("%.4f+%s", 1.0+zoomRange, breathExpr)
		xExpr = fmt.Sprintf("(iw-iw/zoom)*%.4f*(1-on/%d)", intensity, totalFrames)
		yExpr = "ih/2-(ih/zoom/2)"

	default:
		// Fallback: gentle centered zoom in
		zExpr = fmt.Sprintf("1.0+%.4f*on/%d+%s", zoomRange, totalFrames, breathExpr)
		xExpr = "iw/2-(iw/zoom/2)"
		yExpr = "ih/2-(ih/zoom/2)"
	}

	return fmt.Sprintf(
		"zoompan=z='%s':x='%s':y='%s':d=%d:s=%dx%d:fps=%d",
		zExpr, xExpr, yExpr,
		totalFrames,
		res.Width, res.Height,
		videoFPS,
	)
}

// ConcatenateWithCrossfades joins equal-length clips into one video with a
// short crossfade between consecutive clips. Strictly sequential — it must
// only run after every clip render has finished. Requires at least two clips;
// a single-scene job copies its clip instead (CopyClip).
func (s *FFmpegService) ConcatenateWithCrossfades(ctx context.Context, clipPaths []string, outputPath string, clipDurationSec int, crossfadeMs int) error {
	if len(clipPaths) < 2 {
		return fmt.Errorf("need at least 2 clips to crossfade, got %d", len(clipPaths))
	}

	args := make([]string, 0, 2*len(clipPaths)+10)
	for _, path := range clipPaths {
		args = append(args, "-i", path)
	}

	args = append(args,
		"-filter_complex", buildCrossfadeFilter(len(clipPaths), clipDurationSec, crossfadeMs),
		"-map", fmt.Sprintf("[v%d]", len(clipPaths)-1),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-y",
		outputPath,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg crossfade concat failed: %w", err)
	}

	return nil
}

// buildCrossfadeFilter chains xfade filters: [0][1]xfade[v1]; [v1][2]xfade[v2]; ...
// With equal clip lengths D and fade length f, the k-th fade starts at
// (k+1)*(D-f) into the accumulated stream.
func buildCrossfadeFilter(clipCount, clipDurationSec, crossfadeMs int) string {
	fade := float64(crossfadeMs) / 1000.0

	var b strings.Builder
	prev := "[0:v]"
	for i := 1; i < clipCount; i++ {
		offset := float64(i)*(float64(clipDurationSec)-fade)
		if i > 1 {
			b.WriteString(";")
		}
		fmt.Fprintf(&b, "%s[%d:v]xfade=transition=fade:duration=%.3f:offset=%.3f[v%d]",
			prev, i, fade, offset, i)
		prev = fmt.Sprintf("[v%d]", i)
	}

	return b.String()
}

// CopyClip copies a single rendered clip to the output path unchanged — the
// concatenation shortcut for one-scene jobs.
func (s *FFmpegService) CopyClip(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open clip: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy clip: %w", err)
	}

	return dst.Sync()
}

// GetVideoDuration returns the duration of a video file in milliseconds using ffprobe.
func (s *FFmpegService) GetVideoDuration(ctx context.Context, videoPath string) (int, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var durationSec float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &durationSec); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return int(durationSec * 1000), nil
}

// Cleanup removes temporary files, logging failures. Used for the per-scene
// stills that are deleted as soon as their clip exists.
func (s *FFmpegService) Cleanup(paths ...string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("[FFmpeg] WARNING: failed to remove %s: %v", path, err)
		}
	}
}
