// Package batch applies a recipe of algorithm steps to every matching image
// in a directory, once or on a cron schedule
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jimmywmt/gotool"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"sona-picture-processing/internal/algorithms"
	"sona-picture-processing/internal/core"
	"sona-picture-processing/internal/imageio"
	"sona-picture-processing/internal/journal"
	"sona-picture-processing/internal/metrics"
)

const (
	DefaultPattern = `(?i)\.(png|jpe?g|bmp|tiff?|webp|pdf)$`
	page           = "batch"
)

// Recipe describes one batch job
type Recipe struct {
	Name    string      `yaml:"name"`
	Input   string      `yaml:"input"`
	Pattern string      `yaml:"pattern,omitempty"`
	Output  string      `yaml:"output"`
	Format  string      `yaml:"format,omitempty"`
	Steps   []core.Step `yaml:"steps"`
}

// LoadRecipe reads and validates a YAML recipe.
func LoadRecipe(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse recipe %s: %w", path, err)
	}
	if r.Name == "" {
		r.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("recipe %s: %w", path, err)
	}
	return &r, nil
}

// Validate fills defaults and checks every step.
func (r *Recipe) Validate() error {
	if r.Input == "" {
		return errors.New("input directory is required")
	}
	if r.Output == "" {
		return errors.New("output directory is required")
	}
	if r.Pattern == "" {
		r.Pattern = DefaultPattern
	}
	if r.Format == "" {
		r.Format = "png"
	}
	r.Format = strings.TrimPrefix(strings.ToLower(r.Format), ".")
	if !imageio.IsWritable("x." + r.Format) {
		return fmt.Errorf("unsupported output format %q", r.Format)
	}
	if len(r.Steps) == 0 {
		return errors.New("recipe has no steps")
	}
	for i := range r.Steps {
		r.Steps[i].Parameters = core.NormalizeParams(r.Steps[i].Parameters)
		if err := algorithms.ValidateParameters(r.Steps[i].Algorithm, r.Steps[i].Parameters); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// Report summarizes one run
type Report struct {
	Recipe    string
	Processed int
	Failed    int
	Errors    []string
	Duration  time.Duration
}

func (r Report) String() string {
	return fmt.Sprintf("%s: %d processed, %d failed in %s", r.Recipe, r.Processed, r.Failed, r.Duration.Round(time.Millisecond))
}

// Runner executes recipes
type Runner struct {
	loader   *imageio.ImageLoader
	recorder journal.Recorder
	logger   logrus.FieldLogger
	workers  int
}

// NewRunner builds a runner. recorder may be nil.
func NewRunner(loader *imageio.ImageLoader, recorder journal.Recorder, logger logrus.FieldLogger, workers int) *Runner {
	return &Runner{loader: loader, recorder: recorder, logger: logger, workers: max(workers, 1)}
}

// Run processes every input file. A failing file is reported and skipped;
// only cancellation or an unreadable input directory stop the run.
func (r *Runner) Run(ctx context.Context, recipe *Recipe) (Report, error) {
	start := time.Now()
	report := Report{Recipe: recipe.Name}
	log := r.logger.WithField("recipe", recipe.Name)

	files, err := ListInputs(recipe.Input, recipe.Pattern)
	if err != nil {
		return report, err
	}
	if err := os.MkdirAll(recipe.Output, 0o755); err != nil {
		return report, fmt.Errorf("create output dir: %w", err)
	}
	log.WithFields(logrus.Fields{"files": len(files), "workers": r.workers}).Info("Batch started")

	var mu sync.Mutex
	eval := metrics.NewEvaluator()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := r.processFile(ctx, recipe, file, eval)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", filepath.Base(file), err))
				log.WithError(err).WithField("file", file).Warn("Batch item failed")
				return nil
			}
			report.Processed++
			return nil
		})
	}
	err = g.Wait()
	report.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"processed": report.Processed,
		"failed":    report.Failed,
		"duration":  report.Duration,
	}).Info("Batch finished")
	return report, err
}

func (r *Runner) processFile(ctx context.Context, recipe *Recipe, file string, eval *metrics.Evaluator) error {
	start := time.Now()
	entry := journal.NewEntry(page, recipe.Name, map[string]interface{}{"file": filepath.Base(file), "steps": len(recipe.Steps)})
	err := r.convert(ctx, recipe, file, eval, entry)
	entry.Finish(start, err)
	if r.recorder != nil {
		if rerr := r.recorder.Record(context.WithoutCancel(ctx), entry); rerr != nil {
			r.logger.WithError(rerr).Warn("Failed to record journal entry")
		}
	}
	return err
}

func (r *Runner) convert(ctx context.Context, recipe *Recipe, file string, eval *metrics.Evaluator, entry *journal.Entry) error {
	img, err := r.loader.Load(file)
	if err != nil {
		return err
	}
	defer img.Close()
	entry.Input = journal.FormatSize(img.Cols(), img.Rows(), img.Channels())

	out, scores, err := core.RunSteps(ctx, img, recipe.Steps, eval)
	if err != nil {
		return err
	}
	defer out.Close()
	entry.Output = journal.FormatSize(out.Cols(), out.Rows(), out.Channels())
	if len(recipe.Steps) == 1 {
		name := recipe.Steps[0].Algorithm
		if psnr, ok := scores[name+"_psnr"]; ok {
			entry.SetMetrics(psnr, scores[name+"_ssim"])
		}
	}

	return r.loader.Save(out, OutputPath(recipe, file))
}

// OutputPath is where the result for file goes.
func OutputPath(recipe *Recipe, file string) string {
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(recipe.Output, base+"."+recipe.Format)
}

// ListInputs returns the files in dir whose names match pattern.
func ListInputs(dir, pattern string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("input directory: %w", err)
	}
	found, err := gotool.DirRegListFiles(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	files := make([]string, 0, len(found))
	for _, f := range found {
		if f == nil {
			continue
		}
		path := *f
		if _, err := os.Stat(path); err != nil {
			path = filepath.Join(dir, filepath.Base(path))
		}
		files = append(files, path)
	}
	return files, nil
}

// Schedule runs the recipe on the cron spec until ctx is done. A run still
// in progress is skipped rather than overlapped.
func (r *Runner) Schedule(ctx context.Context, spec string, recipe *Recipe) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		report, err := r.Run(ctx, recipe)
		if err != nil {
			r.logger.WithError(err).WithField("recipe", recipe.Name).Error("Scheduled batch failed")
			return
		}
		r.logger.Info(report.String())
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	r.logger.WithFields(logrus.Fields{"recipe": recipe.Name, "schedule": spec}).Info("Batch scheduled")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
