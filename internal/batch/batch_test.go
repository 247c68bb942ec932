package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/MeKo-Tech/cutout/internal/trimap"
	"github.com/MeKo-Tech/cutout/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Pipeline.Iterations = 2
	cfg.Workers = 2
	cfg.OutputDir = t.TempDir()
	return cfg
}

type recordingProgress struct {
	mu        sync.Mutex
	total     int
	progress  []int
	errors    int
	completed bool
}

func (r *recordingProgress) OnStart(total int) { r.total = total }
func (r *recordingProgress) OnProgress(current, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, current)
}
func (r *recordingProgress) OnComplete() { r.completed = true }
func (r *recordingProgress) OnError(int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

func TestProcessBatch(t *testing.T) {
	dir := testutil.WriteSceneDir(t)
	cfg := testConfig(t)
	progress := &recordingProgress{}
	cfg.Progress = progress

	res, err := ProcessBatch(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)

	require.Len(t, res.Items, 3)
	assert.Equal(t, 3, res.Succeeded())
	assert.Equal(t, 0, res.Failed())
	assert.Equal(t, 2, res.WorkerCount)

	names := []string{"block", "ellipse", "soft_ellipse"}
	for i, it := range res.Items {
		assert.Equal(t, filepath.Join(dir, names[i]+".png"), it.Path)
		assert.Equal(t, filepath.Join(cfg.OutputDir, names[i]+"_mask.png"), it.Output)
		assert.True(t, testutil.FileExists(it.Output))
		require.NotNil(t, it.Summary)
		assert.Equal(t, 2, it.Summary.Iterations)
		assert.Positive(t, it.Summary.ForegroundPixels)
	}

	assert.Equal(t, 3, progress.total)
	assert.ElementsMatch(t, []int{1, 2, 3}, progress.progress)
	assert.True(t, progress.completed)
}

func TestProcessBatch_OutputsNextToInputs(t *testing.T) {
	dir := testutil.WriteSceneDir(t)
	cfg := testConfig(t)
	cfg.OutputDir = ""
	cfg.Format = pipeline.FormatCutout
	cfg.IncludePatterns = []string{"ellipse.png"}

	res, err := ProcessBatch(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, filepath.Join(dir, "ellipse_cutout.png"), res.Items[0].Output)

	// a second run must not pick up the written output as input
	res, err = ProcessBatch(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
}

func TestProcessBatch_MaskSidecar(t *testing.T) {
	dir := t.TempDir()
	img, truth := testutil.GenerateScene(testutil.DefaultSceneConfig())
	imgPath := filepath.Join(dir, "scene.png")
	testutil.SaveImage(t, img, imgPath)

	hint := trimap.New(64, 48, trimap.ProbableBackground)
	for y := 12; y < 36; y++ {
		for x := 16; x < 48; x++ {
			hint.Set(x, y, trimap.ProbableForeground)
		}
	}
	require.NoError(t, utils.SaveMask(utils.MaskSidecarPath(imgPath), hint, true))

	cfg := testConfig(t)
	res, err := ProcessBatch(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	it := res.Items[0]
	assert.Equal(t, utils.MaskSidecarPath(imgPath), it.MaskPath)
	assert.Equal(t, "mask", it.Summary.Mode)

	mask, err := utils.LoadMask(it.Output)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, testutil.MaskIoU(mask.Binary(), truth), 0.85)

	cfg.UseMasks = false
	res, err = ProcessBatch(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Items[0].MaskPath)
	assert.Equal(t, "rect", res.Items[0].Summary.Mode)
}

func TestProcessBatch_Errors(t *testing.T) {
	dir := testutil.WriteSceneDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0o600))

	t.Run("abort", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Workers = 1
		_, err := ProcessBatch(context.Background(), []string{dir}, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken.png")
	})

	t.Run("continue", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.ContinueOnError = true
		progress := &recordingProgress{}
		cfg.Progress = progress

		res, err := ProcessBatch(context.Background(), []string{dir}, cfg)
		require.NoError(t, err)
		require.Len(t, res.Items, 4)
		assert.Equal(t, 3, res.Succeeded())
		assert.Equal(t, 1, res.Failed())
		assert.Equal(t, 1, progress.errors)

		broken := res.Items[1]
		assert.Equal(t, filepath.Join(dir, "broken.png"), broken.Path)
		require.Error(t, broken.Err)
		assert.Empty(t, broken.Output)
		assert.Nil(t, broken.Summary)
	})

	t.Run("no images", func(t *testing.T) {
		_, err := ProcessBatch(context.Background(), []string{t.TempDir()}, testConfig(t))
		require.ErrorIs(t, err, ErrNoImages)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Workers = 0
		_, err := ProcessBatch(context.Background(), []string{dir}, cfg)
		require.Error(t, err)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ProcessBatch(ctx, []string{testutil.WriteSceneDir(t)}, testConfig(t))
		require.ErrorIs(t, err, context.Canceled)
	})
}

func sampleResult() *Result {
	return &Result{
		Items: []Item{
			{
				Path:    "in/a.png",
				Output:  "out/a_mask.png",
				Summary: &pipeline.Summary{Iterations: 5, ForegroundPixels: 120, Coverage: 0.25},
			},
			{Path: "in/b.png", Err: errors.New("bad image")},
		},
		WorkerCount: 2,
	}
}

func TestFormatResults(t *testing.T) {
	res := sampleResult()

	t.Run("text", func(t *testing.T) {
		out, err := res.FormatResults(ReportText)
		require.NoError(t, err)
		assert.Contains(t, out, "OK   in/a.png -> out/a_mask.png (rect, 25.0% foreground)")
		assert.Contains(t, out, "FAIL in/b.png: bad image")
	})

	t.Run("json", func(t *testing.T) {
		out, err := res.FormatResults(ReportJSON)
		require.NoError(t, err)
		var parsed struct {
			Images []struct {
				File   string `json:"file"`
				Status string `json:"status"`
				Error  string `json:"error"`
			} `json:"images"`
			Succeeded int `json:"succeeded"`
			Failed    int `json:"failed"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &parsed))
		require.Len(t, parsed.Images, 2)
		assert.Equal(t, "ok", parsed.Images[0].Status)
		assert.Equal(t, "error", parsed.Images[1].Status)
		assert.Equal(t, "bad image", parsed.Images[1].Error)
		assert.Equal(t, 1, parsed.Succeeded)
		assert.Equal(t, 1, parsed.Failed)
	})

	t.Run("csv", func(t *testing.T) {
		out, err := res.FormatResults(ReportCSV)
		require.NoError(t, err)
		rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "file", rows[0][0])
		assert.Equal(t, []string{"in/a.png", "", "out/a_mask.png", "ok", "5", "120", "0.2500", "0", ""}, rows[1])
		assert.Equal(t, "error", rows[2][3])
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := res.FormatResults("xml")
		require.Error(t, err)
	})
}

func TestSaveResultsAndStats(t *testing.T) {
	res := sampleResult()

	var buf bytes.Buffer
	require.NoError(t, res.SaveResults(&buf, ReportText, ""))
	assert.Contains(t, buf.String(), "in/a.png")

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, res.SaveResults(&buf, ReportJSON, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	buf.Reset()
	res.PrintStats(&buf)
	assert.Contains(t, buf.String(), "Total images: 2")
	assert.Contains(t, buf.String(), "Processed: 1")
	assert.Contains(t, buf.String(), "Failed: 1")
}
