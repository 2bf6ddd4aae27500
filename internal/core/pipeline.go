// Page actions over a Session: each validates its inputs, runs the
// operation, commits the result and records a journal entry
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"sona-picture-processing/internal/algorithms"
	"sona-picture-processing/internal/background"
	"sona-picture-processing/internal/compression"
	"sona-picture-processing/internal/journal"
	"sona-picture-processing/internal/matching"
	"sona-picture-processing/internal/metrics"
	"sona-picture-processing/internal/operators"
	"sona-picture-processing/internal/restoration"
	"sona-picture-processing/internal/stitching"
)

// Page names used in the journal
const (
	PageEditor      = "editor"
	PageOperators   = "operators"
	PageCompression = "compression"
	PageMatching    = "matching"
	PageStitching   = "stitching"
	PageBackground  = "background"
	PageRestoration = "restoration"
)

// Pipeline runs page actions against a session
type Pipeline struct {
	session     *Session
	metricsEval *metrics.Evaluator
	recorder    journal.Recorder
	logger      logrus.FieldLogger
}

// NewPipeline wires a pipeline. recorder may be nil to skip journaling.
func NewPipeline(session *Session, recorder journal.Recorder, logger logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		session:     session,
		metricsEval: metrics.NewEvaluator(),
		recorder:    recorder,
		logger:      logger,
	}
}

func (p *Pipeline) Session() *Session {
	return p.session
}

// ApplyAlgorithm runs a registered algorithm on the working image and returns
// its PSNR/SSIM against the previous image when they are comparable.
func (p *Pipeline) ApplyAlgorithm(ctx context.Context, name string, params map[string]interface{}) (map[string]float64, error) {
	params = NormalizeParams(params)
	return p.run(ctx, PageEditor, name, params, func(current gocv.Mat) (gocv.Mat, error) {
		return algorithms.Apply(name, current, params)
	})
}

// ApplySteps applies each step as its own undoable edit.
func (p *Pipeline) ApplySteps(ctx context.Context, steps []Step) error {
	for _, step := range steps {
		if _, err := p.ApplyAlgorithm(ctx, step.Algorithm, step.Parameters); err != nil {
			return err
		}
	}
	return nil
}

// ApplyOperator combines the working image with the second image. Not uses
// the working image alone.
func (p *Pipeline) ApplyOperator(ctx context.Context, op operators.Operator, opts operators.Options) (map[string]float64, error) {
	params := map[string]interface{}{
		"alpha": opts.Alpha, "beta": opts.Beta, "gamma": opts.Gamma, "brightness": opts.Brightness,
	}
	return p.run(ctx, PageOperators, string(op), params, func(current gocv.Mat) (gocv.Mat, error) {
		second := gocv.NewMat()
		if !op.Unary() {
			second.Close()
			var err error
			if second, err = p.session.Secondary(); err != nil {
				return gocv.NewMat(), err
			}
		}
		defer second.Close()
		return operators.Apply(op, current, second, opts)
	})
}

// Compress replaces the working image with its decompressed rendition. The
// caller closes the returned result.
func (p *Pipeline) Compress(ctx context.Context, method compression.Method, opts compression.Options) (compression.Result, error) {
	var (
		res      compression.Result
		produced bool
	)
	params := map[string]interface{}{"quality": opts.Quality, "keep_fraction": opts.KeepFraction}
	_, err := p.run(ctx, PageCompression, string(method), params, func(current gocv.Mat) (gocv.Mat, error) {
		var err error
		res, err = compression.Compress(current, method, opts)
		if err != nil {
			return gocv.NewMat(), err
		}
		produced = true
		return res.Image.Clone(), nil
	})
	if err != nil {
		if produced {
			res.Close()
		}
		return compression.Result{}, err
	}
	return res, nil
}

// Match matches the working image against the second image. The session is
// left unchanged; the caller closes the result.
func (p *Pipeline) Match(ctx context.Context, opts matching.Options) (matching.Result, error) {
	start := time.Now()
	entry := journal.NewEntry(PageMatching, "orb", map[string]interface{}{"max_matches": opts.MaxMatches})

	res, err := p.match(ctx, opts)
	entry.Finish(start, err)
	if err == nil {
		entry.Output = journal.FormatSize(res.Image.Cols(), res.Image.Rows(), res.Image.Channels())
	}
	p.record(ctx, entry)

	if err != nil {
		p.logger.WithError(err).Warn("Matching failed")
		return matching.Result{}, err
	}
	p.logger.WithFields(logrus.Fields{"matches": res.Matches, "drawn": res.Drawn}).Info("Matching completed")
	return res, nil
}

func (p *Pipeline) match(ctx context.Context, opts matching.Options) (matching.Result, error) {
	if err := ctx.Err(); err != nil {
		return matching.Result{}, err
	}
	query, err := p.session.Current()
	if err != nil {
		return matching.Result{}, err
	}
	defer query.Close()
	train, err := p.session.Secondary()
	if err != nil {
		return matching.Result{}, err
	}
	defer train.Close()
	return matching.Match(query, train, opts)
}

// Stitch joins the image list into a panorama. With no working image the
// panorama is loaded as a new one, otherwise it is committed as an edit.
func (p *Pipeline) Stitch(ctx context.Context, opts stitching.Options) error {
	start := time.Now()
	entry := journal.NewEntry(PageStitching, string(opts.Mode), map[string]interface{}{
		"images": p.session.ListLen(), "max_width": opts.MaxWidth,
	})

	err := p.stitch(ctx, opts)
	entry.Finish(start, err)
	if err == nil {
		meta := p.session.Metadata()
		entry.Output = journal.FormatSize(meta.Width, meta.Height, meta.Channels)
	}
	p.record(ctx, entry)

	if err != nil {
		p.logger.WithError(err).Warn("Stitching failed")
		return err
	}
	p.logger.WithField("output", entry.Output).Info("Stitching completed")
	return nil
}

func (p *Pipeline) stitch(ctx context.Context, opts stitching.Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	images := p.session.List()
	defer func() {
		for _, m := range images {
			m.Close()
		}
	}()

	pano, err := stitching.Stitch(images, opts)
	if err != nil {
		return err
	}
	defer pano.Close()

	if !p.session.HasImage() {
		return p.session.Load(pano, "panorama.png")
	}
	return p.session.Commit(pano)
}

// RemoveBackground whitens, or with opts.Transparent clears, the background.
func (p *Pipeline) RemoveBackground(ctx context.Context, opts background.Options) (map[string]float64, error) {
	params := map[string]interface{}{"transparent": opts.Transparent, "white_level": opts.WhiteLevel}
	return p.run(ctx, PageBackground, string(opts.Method), params, func(current gocv.Mat) (gocv.Mat, error) {
		return background.Remove(current, opts)
	})
}

// Inpaint repairs the masked pixels of the working image.
func (p *Pipeline) Inpaint(ctx context.Context, opts restoration.Options) (map[string]float64, error) {
	params := map[string]interface{}{"radius": opts.Radius}
	return p.run(ctx, PageRestoration, string(opts.Method), params, func(current gocv.Mat) (gocv.Mat, error) {
		mask, err := p.session.Mask()
		if err != nil {
			return gocv.NewMat(), err
		}
		defer mask.Close()
		return restoration.Inpaint(current, mask, opts)
	})
}

// InpaintRegions rasterizes regions into the session mask, then inpaints.
func (p *Pipeline) InpaintRegions(ctx context.Context, regions *Regions, opts restoration.Options) (map[string]float64, error) {
	if regions.Len() == 0 {
		return nil, ErrNoMask
	}
	if !p.session.HasImage() {
		return nil, ErrNoImage
	}
	meta := p.session.Metadata()
	mask := regions.Mask(meta.Width, meta.Height)
	defer mask.Close()
	if err := p.session.SetMask(mask); err != nil {
		return nil, err
	}
	return p.Inpaint(ctx, opts)
}

// run applies op to the working image, commits the result and journals it.
func (p *Pipeline) run(ctx context.Context, page, operation string, params map[string]interface{}, op func(gocv.Mat) (gocv.Mat, error)) (map[string]float64, error) {
	start := time.Now()
	entry := journal.NewEntry(page, operation, params)
	log := p.logger.WithFields(logrus.Fields{"page": page, "operation": operation})

	scores, err := p.apply(ctx, entry, op)
	entry.Finish(start, err)
	p.record(ctx, entry)

	if err != nil {
		log.WithError(err).Warn("Operation failed")
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"duration_ms": entry.DurationMS,
		"psnr":        scores["psnr"],
		"ssim":        scores["ssim"],
	}).Info("Operation applied")
	return scores, nil
}

func (p *Pipeline) apply(ctx context.Context, entry *journal.Entry, op func(gocv.Mat) (gocv.Mat, error)) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current, err := p.session.Current()
	if err != nil {
		return nil, err
	}
	defer current.Close()
	entry.Input = journal.FormatSize(current.Cols(), current.Rows(), current.Channels())

	result, err := op(current)
	if err != nil {
		return nil, err
	}
	defer result.Close()
	if result.Empty() {
		return nil, fmt.Errorf("%s produced an empty image", entry.Operation)
	}
	entry.Output = journal.FormatSize(result.Cols(), result.Rows(), result.Channels())

	scores := p.compare(current, result)
	if psnr, ok := scores["psnr"]; ok {
		entry.SetMetrics(psnr, scores["ssim"])
	}

	if err := p.session.Commit(result); err != nil {
		return nil, err
	}
	return scores, nil
}

// compare scores after against before when their sizes match.
func (p *Pipeline) compare(before, after gocv.Mat) map[string]float64 {
	scores := make(map[string]float64)
	if before.Cols() != after.Cols() || before.Rows() != after.Rows() {
		return scores
	}
	if psnr, err := p.metricsEval.CalculatePSNR(before, after); err == nil {
		scores["psnr"] = psnr
	}
	if ssim, err := p.metricsEval.CalculateSSIM(before, after); err == nil {
		scores["ssim"] = ssim
	}
	return scores
}

func (p *Pipeline) record(ctx context.Context, entry *journal.Entry) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		p.logger.WithError(err).Warn("Failed to record journal entry")
	}
}
