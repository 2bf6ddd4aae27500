package gui

import (
	"image"
	"math"
	"path/filepath"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"sona-picture-processing/internal/algorithms"
	"sona-picture-processing/internal/config"
	"sona-picture-processing/internal/core"
	"sona-picture-processing/internal/imageio"
)

func newTestApplication(t *testing.T) *Application {
	t.Helper()
	fyneApp := test.NewApp()
	t.Cleanup(fyneApp.Quit)

	logger, _ := logtest.NewNullLogger()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()

	session := core.NewSession(cfg.HistoryLimit)
	t.Cleanup(session.Close)
	pipeline := core.NewPipeline(session, nil, logger)
	return NewApplication(fyneApp, cfg, pipeline, imageio.NewImageLoader(logger, cfg.PDFDPI), logger, false)
}

func writeTestImage(t *testing.T) string {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 100, 150, 0), 40, 60, gocv.MatTypeCV8UC3)
	defer mat.Close()
	path := filepath.Join(t.TempDir(), "input.png")
	require.True(t, gocv.IMWrite(path, mat))
	return path
}

func TestHomeListsEveryPage(t *testing.T) {
	a := newTestApplication(t)

	require.Len(t, a.tabs.Items, len(a.pages)+1)
	assert.Equal(t, "Home", a.tabs.Items[0].Text)
	for i, p := range a.pages {
		assert.Equal(t, p.Title(), a.tabs.Items[i+1].Text)
		assert.NotEmpty(t, p.Description())
	}
}

func TestEditorAppliesSelectedAlgorithm(t *testing.T) {
	a := newTestApplication(t)
	require.NoError(t, a.LoadImageFromPath(writeTestImage(t)))
	a.refreshImage()

	editor := a.pages[0].(*editorPage)
	editor.categorySelect.SetSelected(algorithms.CategoryBasic)
	editor.algorithmSelect.SetSelected("grayscale")
	require.False(t, editor.applyButton.Disabled())

	test.Tap(editor.applyButton)
	a.wait()

	assert.Eventually(t, func() bool { return editor.status.Text == "Applied grayscale" }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, a.pipeline.Session().HistoryLen())

	a.Undo()
	assert.Equal(t, 0, a.pipeline.Session().HistoryLen())
}

func TestOperatorNeedsSecondImage(t *testing.T) {
	a := newTestApplication(t)
	require.NoError(t, a.LoadImageFromPath(writeTestImage(t)))

	ops := a.pages[1].(*operatorsPage)
	ops.opSelect.SetSelected("blend")
	ops.apply()
	a.wait()

	want := "Error: " + core.ErrNoSecondary.Error()
	assert.Eventually(t, func() bool { return ops.status.Text == want }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, a.pipeline.Session().HistoryLen())
}

func TestQuickSaveWritesToOutputDir(t *testing.T) {
	a := newTestApplication(t)
	_, err := a.QuickSave()
	assert.ErrorIs(t, err, core.ErrNoImage)

	require.NoError(t, a.LoadImageFromPath(writeTestImage(t)))
	path, err := a.QuickSave()
	require.NoError(t, err)
	assert.Equal(t, a.cfg.OutputDir, filepath.Dir(path))

	saved := gocv.IMRead(path, gocv.IMReadColor)
	defer saved.Close()
	assert.Equal(t, 60, saved.Cols())
}

func TestParamFormStartsAtDefaults(t *testing.T) {
	test.NewApp()
	algorithm, ok := algorithms.Get("gaussian")
	require.True(t, ok)

	form := NewParamForm()
	form.Build(algorithm.GetParameterInfo())
	values := form.Values()
	assert.Equal(t, 5.0, values["kernel_size"])
	assert.Equal(t, 1.0, values["sigma"])
	assert.NoError(t, algorithm.Validate(values))
}

func TestMarkingViewRecordsRectangle(t *testing.T) {
	test.NewApp()
	logger, _ := logtest.NewNullLogger()
	regions := core.NewRegions()
	view := NewMarkingView(fyne.NewSize(100, 100), regions, logger)
	view.Resize(fyne.NewSize(100, 100))
	view.SetImage(image.NewRGBA(image.Rect(0, 0, 100, 100)))

	marked := 0
	view.SetRegionsChangedCallback(func(n int) { marked = n })

	view.Dragged(&fyne.DragEvent{
		PointEvent: fyne.PointEvent{Position: fyne.NewPos(60, 60)},
		Dragged:    fyne.NewDelta(50, 50),
	})
	view.DragEnd()

	require.Equal(t, 1, regions.Len())
	assert.Equal(t, 1, marked)
	r := regions.All()[0]
	assert.Equal(t, core.RegionRect, r.Kind)
	assert.Equal(t, []image.Point{{X: 10, Y: 10}, {X: 60, Y: 60}}, r.Points)
}

func TestReadOnlyViewIgnoresDrags(t *testing.T) {
	test.NewApp()
	view := NewImageView(fyne.NewSize(50, 50))
	view.Resize(fyne.NewSize(50, 50))
	view.SetImage(image.NewRGBA(image.Rect(0, 0, 50, 50)))

	view.Dragged(&fyne.DragEvent{
		PointEvent: fyne.PointEvent{Position: fyne.NewPos(40, 40)},
		Dragged:    fyne.NewDelta(20, 20),
	})
	view.DragEnd()
	assert.False(t, view.drawing)
}

func TestFormatScores(t *testing.T) {
	assert.Equal(t, "No metrics (image size changed)", formatScores(nil))
	assert.Equal(t, "PSNR: inf\nSSIM: 1.0000", formatScores(map[string]float64{
		"ssim": 1,
		"psnr": math.Inf(1),
	}))
	assert.Equal(t, "PSNR: 31.50 dB", formatScores(map[string]float64{"psnr": 31.5}))
}

func TestInpaintKeepsMarksDrawnMeanwhile(t *testing.T) {
	a := newTestApplication(t)
	require.NoError(t, a.LoadImageFromPath(writeTestImage(t)))

	restore := a.pages[5].(*restorationPage)
	restore.regions.AddRect(image.Rect(5, 5, 15, 15))
	restore.inpaint()
	later := restore.regions.AddRect(image.Rect(30, 20, 40, 30))
	a.wait()

	assert.Eventually(t, func() bool { return restore.regions.Len() == 1 }, time.Second, 10*time.Millisecond)
	require.Len(t, restore.regions.All(), 1)
	assert.Equal(t, later, restore.regions.All()[0].ID)
	assert.Equal(t, 1, a.pipeline.Session().HistoryLen())
}
