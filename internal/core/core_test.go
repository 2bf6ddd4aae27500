package core

import (
	"context"
	"image"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"sona-picture-processing/internal/algorithms"
	"sona-picture-processing/internal/background"
	"sona-picture-processing/internal/compression"
	"sona-picture-processing/internal/journal"
	"sona-picture-processing/internal/matching"
	"sona-picture-processing/internal/operators"
	"sona-picture-processing/internal/restoration"
	"sona-picture-processing/internal/stitching"
)

type memoryRecorder struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (m *memoryRecorder) Record(_ context.Context, e *journal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memoryRecorder) last() journal.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func solid(rows, cols int, v float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func newPipeline(t *testing.T, historyLimit int) (*Pipeline, *memoryRecorder) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	rec := &memoryRecorder{}
	session := NewSession(historyLimit)
	t.Cleanup(session.Close)
	return NewPipeline(session, rec, logger), rec
}

func loaded(t *testing.T, historyLimit int) (*Pipeline, *memoryRecorder) {
	t.Helper()
	p, rec := newPipeline(t, historyLimit)
	img := solid(32, 48, 120)
	defer img.Close()
	require.NoError(t, p.Session().Load(img, "photo.jpg"))
	return p, rec
}

func TestSessionRequiresImage(t *testing.T) {
	p, rec := newPipeline(t, 10)
	ctx := context.Background()

	_, err := p.ApplyAlgorithm(ctx, "grayscale", nil)
	assert.ErrorIs(t, err, ErrNoImage)
	assert.ErrorIs(t, p.Session().Undo(), ErrNoImage)
	assert.ErrorIs(t, p.Session().Reset(), ErrNoImage)

	_, err = p.Session().Current()
	assert.ErrorIs(t, err, ErrNoImage)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, journal.StatusFailed, rec.entries[0].Status)
}

func TestApplyAlgorithmCommitsAndRecords(t *testing.T) {
	p, rec := loaded(t, 10)

	scores, err := p.ApplyAlgorithm(context.Background(), "brightness", map[string]interface{}{"factor": 1.2})
	require.NoError(t, err)
	assert.Contains(t, scores, "psnr")
	assert.Contains(t, scores, "ssim")

	cur, err := p.Session().Current()
	require.NoError(t, err)
	defer cur.Close()
	assert.Equal(t, uint8(144), cur.GetVecbAt(0, 0)[0])
	assert.Equal(t, 1, p.Session().HistoryLen())

	entry := rec.last()
	assert.Equal(t, PageEditor, entry.Page)
	assert.Equal(t, "brightness", entry.Operation)
	assert.Equal(t, journal.StatusOK, entry.Status)
	assert.Equal(t, "48x32x3", entry.Input)
	assert.Equal(t, "48x32x3", entry.Output)
	assert.NotNil(t, entry.PSNR)
}

func TestApplyAlgorithmUnknown(t *testing.T) {
	p, rec := loaded(t, 10)
	_, err := p.ApplyAlgorithm(context.Background(), "sepia_dream", nil)
	assert.ErrorIs(t, err, algorithms.ErrUnknownAlgorithm)
	assert.Equal(t, journal.StatusFailed, rec.last().Status)
	assert.Equal(t, 0, p.Session().HistoryLen())
}

func TestApplyAlgorithmIntegerParams(t *testing.T) {
	p, _ := loaded(t, 10)
	_, err := p.ApplyAlgorithm(context.Background(), "border", map[string]interface{}{"thickness": 4})
	require.NoError(t, err)
	assert.Equal(t, 56, p.Session().Metadata().Width)
}

func TestUndoResetAndHistoryLimit(t *testing.T) {
	p, _ := loaded(t, 2)
	ctx := context.Background()

	for _, thickness := range []float64{1, 2, 3} {
		_, err := p.ApplyAlgorithm(ctx, "border", map[string]interface{}{"thickness": thickness})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, p.Session().HistoryLen())
	assert.Equal(t, 48+2+4+6, p.Session().Metadata().Width)

	require.NoError(t, p.Session().Undo())
	assert.Equal(t, 48+2+4, p.Session().Metadata().Width)
	require.NoError(t, p.Session().Undo())
	assert.Equal(t, 48+2, p.Session().Metadata().Width)
	assert.ErrorIs(t, p.Session().Undo(), ErrNothingToUndo)

	require.NoError(t, p.Session().Reset())
	assert.Equal(t, 48, p.Session().Metadata().Width)
	assert.Equal(t, "jpg", p.Session().Metadata().Format)
}

func TestApplySteps(t *testing.T) {
	p, _ := loaded(t, 10)
	steps := []Step{
		{Algorithm: "grayscale"},
		{Algorithm: "threshold", Parameters: map[string]interface{}{"threshold": 100.0}},
	}
	require.NoError(t, p.ApplySteps(context.Background(), steps))
	assert.Equal(t, 2, p.Session().HistoryLen())
	assert.Equal(t, 1, p.Session().Metadata().Channels)
}

func TestApplyOperator(t *testing.T) {
	p, rec := loaded(t, 10)
	ctx := context.Background()

	_, err := p.ApplyOperator(ctx, operators.Add, operators.DefaultOptions())
	assert.ErrorIs(t, err, ErrNoSecondary)

	_, err = p.ApplyOperator(ctx, operators.Not, operators.DefaultOptions())
	require.NoError(t, err)

	second := solid(10, 10, 30)
	defer second.Close()
	require.NoError(t, p.Session().SetSecondary(second))
	_, err = p.ApplyOperator(ctx, operators.Add, operators.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, PageOperators, rec.last().Page)
	assert.Equal(t, "add", rec.last().Operation)
}

func TestCompressCommitsDecodedImage(t *testing.T) {
	p, rec := loaded(t, 10)

	res, err := p.Compress(context.Background(), compression.RLE, compression.DefaultOptions())
	require.NoError(t, err)
	defer res.Close()
	assert.NotEmpty(t, res.JPEG)
	assert.Equal(t, 1, p.Session().HistoryLen())
	assert.Equal(t, "rle", rec.last().Operation)
}

func TestMatchLeavesSessionUnchanged(t *testing.T) {
	p, rec := loaded(t, 10)
	_, err := p.Match(context.Background(), matching.DefaultOptions())
	assert.ErrorIs(t, err, ErrNoSecondary)
	assert.Equal(t, PageMatching, rec.last().Page)
	assert.Equal(t, 0, p.Session().HistoryLen())
}

func TestStitchNeedsList(t *testing.T) {
	p, rec := newPipeline(t, 10)
	img := solid(20, 20, 1)
	defer img.Close()
	require.NoError(t, p.Session().AddToList(img))

	err := p.Stitch(context.Background(), stitching.DefaultOptions())
	assert.ErrorIs(t, err, stitching.ErrNeedMoreImages)
	assert.Equal(t, journal.StatusFailed, rec.last().Status)

	p.Session().ClearList()
	assert.Equal(t, 0, p.Session().ListLen())
}

func TestRemoveBackground(t *testing.T) {
	p, _ := loaded(t, 10)
	opts := background.DefaultOptions()
	opts.Transparent = true
	_, err := p.RemoveBackground(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Session().Metadata().Channels)
}

func TestInpaint(t *testing.T) {
	p, _ := loaded(t, 10)
	ctx := context.Background()

	_, err := p.Inpaint(ctx, restoration.DefaultOptions())
	assert.ErrorIs(t, err, ErrNoMask)

	regions := NewRegions()
	_, err = p.InpaintRegions(ctx, regions, restoration.DefaultOptions())
	assert.ErrorIs(t, err, ErrNoMask)

	regions.AddRect(image.Rect(10, 10, 14, 14))
	_, err = p.InpaintRegions(ctx, regions, restoration.DefaultOptions())
	require.NoError(t, err)

	mask, err := p.Session().Mask()
	require.NoError(t, err)
	defer mask.Close()
	assert.Equal(t, 16, gocv.CountNonZero(mask))
}

func TestCancelledContext(t *testing.T) {
	p, _ := loaded(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.ApplyAlgorithm(ctx, "grayscale", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseStep(t *testing.T) {
	step, err := ParseStep("gaussian:kernel_size=7, sigma=1.5")
	require.NoError(t, err)
	assert.Equal(t, "gaussian", step.Algorithm)
	assert.Equal(t, map[string]interface{}{"kernel_size": 7.0, "sigma": 1.5}, step.Parameters)

	step, err = ParseStep("adaptive_threshold:method=gaussian")
	require.NoError(t, err)
	assert.Equal(t, "gaussian", step.Parameters["method"])

	step, err = ParseStep("negative:preserve_color=true")
	require.NoError(t, err)
	assert.Equal(t, true, step.Parameters["preserve_color"])

	step, err = ParseStep("negative:preserve_color=FALSE")
	require.NoError(t, err)
	assert.Equal(t, false, step.Parameters["preserve_color"])

	_, err = ParseStep("nope")
	assert.ErrorIs(t, err, algorithms.ErrUnknownAlgorithm)
	_, err = ParseStep("gaussian:kernel_size")
	assert.ErrorContains(t, err, "key=value")
	_, err = ParseStep("gamma:gamma=99")
	assert.Error(t, err)
}

func TestRunSteps(t *testing.T) {
	img := solid(16, 16, 100)
	defer img.Close()

	out, scores, err := RunSteps(context.Background(), img, []Step{{Algorithm: "grayscale"}, {Algorithm: "mean"}}, nil)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, 1, out.Channels())
	assert.Empty(t, scores)
	assert.Equal(t, 3, img.Channels())
}

func TestRegionsMask(t *testing.T) {
	rs := NewRegions()
	rect := rs.AddRect(image.Rect(2, 2, 6, 6))
	assert.Equal(t, "rect_1", rect)
	assert.Empty(t, rs.AddRect(image.Rect(3, 3, 3, 9)))
	assert.Empty(t, rs.AddPolygon([]image.Point{{0, 0}, {1, 1}}))
	rs.AddPolygon([]image.Point{{10, 10}, {19, 10}, {19, 19}, {10, 19}})
	rs.AddStroke([]image.Point{{0, 25}, {29, 25}}, 1)

	mask := rs.Mask(30, 30)
	defer mask.Close()
	assert.Equal(t, uint8(255), mask.GetUCharAt(3, 3))
	assert.Equal(t, uint8(0), mask.GetUCharAt(7, 7))
	assert.Equal(t, uint8(255), mask.GetUCharAt(15, 15))
	assert.Equal(t, uint8(255), mask.GetUCharAt(25, 12))

	assert.True(t, rs.Contains(image.Pt(15, 15)))
	assert.False(t, rs.Contains(image.Pt(8, 8)))

	assert.True(t, rs.Undo())
	assert.Equal(t, 2, rs.Len())
	assert.True(t, rs.Remove(rect))
	assert.False(t, rs.Remove(rect))
	rs.Clear()
	assert.Equal(t, 0, rs.Len())
}

func TestSessionSlots(t *testing.T) {
	s := NewSession(3)
	defer s.Close()

	_, err := s.Mask()
	assert.ErrorIs(t, err, ErrNoMask)

	empty := gocv.NewMat()
	defer empty.Close()
	assert.Error(t, s.SetSecondary(empty))

	img := solid(4, 4, 9)
	defer img.Close()
	require.NoError(t, s.SetMask(img))
	s.ClearMask()
	_, err = s.Mask()
	assert.ErrorIs(t, err, ErrNoMask)

	require.NoError(t, s.AddToList(img))
	require.NoError(t, s.AddToList(img))
	list := s.List()
	assert.Len(t, list, 2)
	for _, m := range list {
		m.Close()
	}
}

func TestApplyLayerInsideRegions(t *testing.T) {
	p, rec := loaded(t, 10)
	regions := NewRegions()
	regions.AddRect(image.Rect(0, 0, 10, 10))

	_, err := p.ApplyLayer(context.Background(), Layer{
		Algorithm:  "brightness",
		Parameters: map[string]interface{}{"factor": 1.2},
		Regions:    regions,
		Opacity:    1,
	})
	require.NoError(t, err)

	cur, err := p.Session().Current()
	require.NoError(t, err)
	defer cur.Close()
	assert.Equal(t, uint8(144), cur.GetVecbAt(5, 5)[0])
	assert.Equal(t, uint8(120), cur.GetVecbAt(20, 20)[0])
	assert.Equal(t, "brightness", rec.last().Operation)
}

func TestApplyLayerOpacity(t *testing.T) {
	p, _ := loaded(t, 10)

	_, err := p.ApplyLayer(context.Background(), Layer{
		Algorithm:  "brightness",
		Parameters: map[string]interface{}{"factor": 1.2},
		Opacity:    0.5,
	})
	require.NoError(t, err)

	cur, err := p.Session().Current()
	require.NoError(t, err)
	defer cur.Close()
	assert.Equal(t, uint8(132), cur.GetVecbAt(20, 20)[0])

	_, err = p.ApplyLayer(context.Background(), Layer{Algorithm: "brightness", Opacity: 1.5})
	assert.Error(t, err)
}

func TestApplyLayerRejectsResize(t *testing.T) {
	p, _ := loaded(t, 10)

	_, err := p.ApplyLayer(context.Background(), Layer{
		Algorithm:  "scale",
		Parameters: map[string]interface{}{"width": 24, "height": 16, "keep_aspect": false},
		Opacity:    1,
	})
	assert.ErrorIs(t, err, ErrLayerSize)
	assert.Equal(t, 0, p.Session().HistoryLen())
}

func TestParseStepZeroAndOneAreNumbers(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"erosion:iterations=1":    {"iterations": 1.0},
		"translate:dx=0,dy=1":     {"dx": 0.0, "dy": 1.0},
		"sobel:threshold=0":       {"threshold": 0.0},
		"border:r=0,g=1,b=0":      {"r": 0.0, "g": 1.0, "b": 0.0},
		"gamma:gamma=1":           {"gamma": 1.0},
		"brightness:factor=1":     {"factor": 1.0},
		"laplacian:kernel_size=1": {"kernel_size": 1.0},
	}
	for spec, want := range cases {
		step, err := ParseStep(spec)
		require.NoError(t, err, spec)
		assert.Equal(t, want, step.Parameters, spec)
	}

	_, err := ParseStep("negative:preserve_color=t")
	assert.Error(t, err)
}

func TestRegionsSnapshotAndRemoveAll(t *testing.T) {
	regions := NewRegions()
	first := regions.AddRect(image.Rect(0, 0, 4, 4))
	snap := regions.Snapshot()
	second := regions.AddRect(image.Rect(5, 5, 9, 9))

	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, first, snap.All()[0].ID)

	assert.Equal(t, 1, regions.RemoveAll(snap))
	require.Equal(t, 1, regions.Len())
	assert.Equal(t, second, regions.All()[0].ID)
	assert.Equal(t, 1, snap.Len())
}
