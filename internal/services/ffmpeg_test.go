package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClipDurationSeconds(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		count    int
		expected int
	}{
		{"even split", 30, 5, 6},
		{"floor division", 32, 5, 6},
		{"clamped to minimum", 10, 5, 3},
		{"exactly minimum", 15, 5, 3},
		{"single scene", 30, 1, 30},
		{"many short scenes", 30, 15, 3},
		{"zero count falls back", 30, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClipDurationSeconds(tt.total, tt.count))
		})
	}
}

func TestParseResolution(t *testing.T) {
	assert.Equal(t, Resolution{Width: 1080, Height: 1920}, ParseResolution("1080x1920"))
	assert.Equal(t, Resolution{Width: 1920, Height: 1080}, ParseResolution(" 1920x1080 "))

	// Malformed input falls back to the portrait default
	assert.Equal(t, Resolution{Width: 1080, Height: 1920}, ParseResolution("garbage"))
	assert.Equal(t, Resolution{Width: 1080, Height: 1920}, ParseResolution(""))
}

func TestEffectForIndexCyclesWithoutRepeats(t *testing.T) {
	// Consecutive scenes must get different motion
	for i := 0; i < 20; i++ {
		assert.NotEqual(t, EffectForIndex(i), EffectForIndex(i+1), "index %d", i)
	}

	// Deterministic across calls
	assert.Equal(t, EffectForIndex(7), EffectForIndex(7))

	// Negative indices don't panic
	assert.NotEmpty(t, EffectForIndex(-3))
}

func TestBuildMotionFilterIntensityScaling(t *testing.T) {
	res := Resolution{Width: 1080, Height: 1920}

	full := buildMotionFilter(EffectZoomIn, 5, 1.0, res)
	assert.Contains(t, full, "zoompan=")
	assert.Contains(t, full, "s=1080x1920")
	// Full intensity drives the zoom endpoint to the 0.2 range
	assert.Contains(t, full, "0.2000")

	half := buildMotionFilter(EffectZoomIn, 5, 0.5, res)
	assert.Contains(t, half, "0.1000")

	// Zero intensity: no zoom travel and no breathing pulse amplitude
	still := buildMotionFilter(EffectZoomIn, 5, 0.0, res)
	assert.Contains(t, still, "0.0000")
	assert.NotContains(t, still, "0.2000")
}

func TestBuildMotionFilterClampsIntensity(t *testing.T) {
	res := Resolution{Width: 1080, Height: 1920}

	over := buildMotionFilter(EffectZoomIn, 5, 3.0, res)
	capped := buildMotionFilter(EffectZoomIn, 5, 1.0, res)
	assert.Equal(t, capped, over)

	under := buildMotionFilter(EffectZoomIn, 5, -1.0, res)
	zero := buildMotionFilter(EffectZoomIn, 5, 0.0, res)
	assert.Equal(t, zero, under)
}

func TestBuildMotionFilterAllEffects(t *testing.T) {
	res := Resolution{Width: 1080, Height: 1920}
	for _, effect := range effectPool {
		vf := buildMotionFilter(effect, 4, 0.6, res)
		assert.Contains(t, vf, "zoompan=", "effect %s", effect)
		assert.Contains(t, vf, fmt.Sprintf("fps=%d", videoFPS), "effect %s", effect)
	}
}

func TestBuildCrossfadeFilterOffsets(t *testing.T) {
	// 3 clips of 6s with a 500ms fade: fades start at 5.5 and 11.0
	filter := buildCrossfadeFilter(3, 6, 500)

	assert.Contains(t, filter, "[0:v][1:v]xfade=transition=fade:duration=0.500:offset=5.500[v1]")
	assert.Contains(t, filter, "[v1][2:v]xfade=transition=fade:duration=0.500:offset=11.000[v2]")
	assert.Equal(t, 1, strings.Count(filter, ";"))
}

func TestBuildCrossfadeFilterTwoClips(t *testing.T) {
	filter := buildCrossfadeFilter(2, 3, 500)
	assert.Equal(t, "[0:v][1:v]xfade=transition=fade:duration=0.500:offset=2.500[v1]", filter)
}

func TestWorkAreaLifecycle(t *testing.T) {
	svc := NewFFmpegService(t.TempDir(), Resolution{Width: 1080, Height: 1920})

	wa, err := svc.NewWorkArea(uuid.New())
	require.NoError(t, err)

	info, err := os.Stat(wa.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Files live inside the area
	path := wa.Path("clip_0.mp4")
	assert.Equal(t, wa.Dir, filepath.Dir(path))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	// Remove takes the directory and its contents, and is safe to repeat
	wa.Remove()
	_, err = os.Stat(wa.Dir)
	assert.True(t, os.IsNotExist(err))
	wa.Remove()
}

func TestWorkAreasAreIsolated(t *testing.T) {
	svc := NewFFmpegService(t.TempDir(), Resolution{})

	jobID := uuid.New()
	wa1, err := svc.NewWorkArea(jobID)
	require.NoError(t, err)
	defer wa1.Remove()

	wa2, err := svc.NewWorkArea(jobID)
	require.NoError(t, err)
	defer wa2.Remove()

	// Same job assembling twice still gets distinct directories
	assert.NotEqual(t, wa1.Dir, wa2.Dir)
}

func TestCopyClip(t *testing.T) {
	svc := NewFFmpegService(t.TempDir(), Resolution{})

	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	dst := filepath.Join(dir, "final.mp4")
	content := []byte("fake mp4 bytes")
	require.NoError(t, os.WriteFile(src, content, 0644))

	require.NoError(t, svc.CopyClip(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}
