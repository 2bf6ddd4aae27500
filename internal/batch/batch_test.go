package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"sona-picture-processing/internal/core"
	"sona-picture-processing/internal/imageio"
)

func newRunner() *Runner {
	logger, _ := test.NewNullLogger()
	return NewRunner(imageio.NewImageLoader(logger, 72), nil, logger, 2)
}

func writeInputs(t *testing.T, dir string, names ...string) {
	t.Helper()
	il := newRunner().loader
	for i, name := range names {
		img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(40*i), 90, 200, 0), 16, 24, gocv.MatTypeCV8UC3)
		require.NoError(t, il.Save(img, filepath.Join(dir, name)))
		img.Close()
	}
}

func TestLoadRecipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleanup.yaml")
	data := `
input: ./scans
output: ./out
format: JPG
steps:
  - algorithm: grayscale
  - algorithm: gaussian
    params:
      kernel_size: 7
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	r, err := LoadRecipe(path)
	require.NoError(t, err)
	assert.Equal(t, "cleanup", r.Name)
	assert.Equal(t, "jpg", r.Format)
	assert.Equal(t, DefaultPattern, r.Pattern)
	require.Len(t, r.Steps, 2)
	assert.Equal(t, 7.0, r.Steps[1].Parameters["kernel_size"])
}

func TestRecipeValidate(t *testing.T) {
	cases := map[string]Recipe{
		"input directory":    {Output: "o", Steps: []core.Step{{Algorithm: "grayscale"}}},
		"output directory":   {Input: "i", Steps: []core.Step{{Algorithm: "grayscale"}}},
		"no steps":           {Input: "i", Output: "o"},
		"unsupported output": {Input: "i", Output: "o", Format: "gif", Steps: []core.Step{{Algorithm: "grayscale"}}},
		"unknown algorithm":  {Input: "i", Output: "o", Steps: []core.Step{{Algorithm: "warp"}}},
	}
	for want, recipe := range cases {
		t.Run(want, func(t *testing.T) {
			assert.ErrorContains(t, recipe.Validate(), want)
		})
	}
}

func TestRunProcessesDirectory(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "results")
	writeInputs(t, in, "a.png", "b.png", "c.jpg")
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.png"), []byte("not a png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("skip me"), 0o644))

	recipe := &Recipe{Name: "gray", Input: in, Output: out, Steps: []core.Step{{Algorithm: "grayscale"}}}
	require.NoError(t, recipe.Validate())

	runner := newRunner()
	report, err := runner.Run(context.Background(), recipe)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "broken.png")

	result, err := runner.loader.Load(filepath.Join(out, "c.png"))
	require.NoError(t, err)
	defer result.Close()
	px := result.GetVecbAt(2, 2)
	assert.Equal(t, px[0], px[1])
	assert.Equal(t, px[1], px[2])
}

func TestRunMissingInput(t *testing.T) {
	recipe := &Recipe{Input: filepath.Join(t.TempDir(), "nope"), Output: t.TempDir(), Steps: []core.Step{{Algorithm: "grayscale"}}}
	require.NoError(t, recipe.Validate())
	_, err := newRunner().Run(context.Background(), recipe)
	assert.ErrorContains(t, err, "input directory")
}

func TestSchedule(t *testing.T) {
	runner := newRunner()
	recipe := &Recipe{Name: "nightly", Input: t.TempDir(), Output: t.TempDir(), Steps: []core.Step{{Algorithm: "grayscale"}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, runner.Schedule(ctx, "@every 1h", recipe))
	assert.ErrorContains(t, runner.Schedule(context.Background(), "every tuesday", recipe), "invalid cron spec")
}

func TestOutputPath(t *testing.T) {
	recipe := &Recipe{Output: "out", Format: "jpg"}
	assert.Equal(t, filepath.Join("out", "scan.01.jpg"), OutputPath(recipe, "/in/scan.01.png"))
}
