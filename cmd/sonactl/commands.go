package main

import (
	"fmt"
	"image"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"sona-picture-processing/internal/algorithms"
	"sona-picture-processing/internal/background"
	"sona-picture-processing/internal/batch"
	"sona-picture-processing/internal/compression"
	"sona-picture-processing/internal/core"
	"sona-picture-processing/internal/imageio"
	"sona-picture-processing/internal/operators"
	"sona-picture-processing/internal/restoration"
	"sona-picture-processing/internal/stitching"
	"sona-picture-processing/internal/system"
)

func inputFlag() cli.Flag {
	return &cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "input image", Required: true}
}

func secondFlag() cli.Flag {
	return &cli.StringFlag{Name: "second", Aliases: []string{"s"}, Usage: "second image", Required: true}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output image (default: a generated name in the output directory)"}
}

// open loads path as the working image of a new pipeline.
func (e *environment) open(path string) (*core.Pipeline, error) {
	p := e.newPipeline()
	mat, err := e.loader.Load(path)
	if err != nil {
		p.Session().Close()
		return nil, err
	}
	defer mat.Close()
	if err := p.Session().Load(mat, path); err != nil {
		p.Session().Close()
		return nil, err
	}
	return p, nil
}

func (e *environment) setSecondary(p *core.Pipeline, path string) error {
	mat, err := e.loader.Load(path)
	if err != nil {
		return err
	}
	defer mat.Close()
	return p.Session().SetSecondary(mat)
}

// save writes the working image to output, or to a generated name under the
// output directory, and reports where it went.
func (e *environment) save(c *cli.Context, p *core.Pipeline, prefix string) error {
	output := c.String("output")
	if output == "" {
		output = filepath.Join(e.cfg.OutputDir, imageio.ResultName(prefix, ".png"))
	}
	current, err := p.Session().Current()
	if err != nil {
		return err
	}
	defer current.Close()
	if err := e.loader.Save(current, output); err != nil {
		return err
	}
	e.report(c, output)
	return nil
}

func (e *environment) report(c *cli.Context, path string) {
	size := "?"
	if info, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	fmt.Fprintf(c.App.Writer, "wrote %s (%s)\n", path, size)
}

func scoreLine(scores map[string]float64) string {
	if len(scores) == 0 {
		return "size changed, no metrics"
	}
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		if v := scores[name]; math.IsInf(v, 1) {
			parts = append(parts, name+"=inf")
		} else {
			parts = append(parts, fmt.Sprintf("%s=%.4f", name, v))
		}
	}
	return strings.Join(parts, " ")
}

func listCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "list algorithms by category with their parameters",
		Action: func(c *cli.Context) error {
			w := c.App.Writer
			byCategory := algorithms.GetAlgorithmsByCategory()
			for _, category := range algorithms.CategoryOrder {
				names := byCategory[category]
				if len(names) == 0 {
					continue
				}
				fmt.Fprintln(w, category)
				for _, name := range names {
					algorithm, _ := algorithms.Get(name)
					fmt.Fprintf(w, "  %-24s %s\n", name, algorithm.GetDescription())
					for _, p := range algorithm.GetParameterInfo() {
						fmt.Fprintf(w, "      %s\n", describeParam(p))
					}
				}
			}
			fmt.Fprintf(w, "\noperators: %v\n", operators.All())
			return nil
		},
	}
}

func describeParam(p algorithms.ParameterInfo) string {
	switch p.Type {
	case "enum":
		return fmt.Sprintf("%s (one of %s, default %v)", p.Name, strings.Join(p.Options, "|"), p.Default)
	case "bool":
		return fmt.Sprintf("%s (bool, default %v)", p.Name, p.Default)
	}
	return fmt.Sprintf("%s (%s %v..%v, default %v)", p.Name, p.Type, p.Min, p.Max, p.Default)
}

func applyCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Aliases:   []string{"a"},
		Usage:     "apply one or more algorithm steps",
		ArgsUsage: "--op name[:key=value,...] [--op ...]",
		Flags: []cli.Flag{
			inputFlag(),
			outputFlag(),
			&cli.StringSliceFlag{Name: "op", Usage: "algorithm step, repeatable", Required: true},
			&cli.StringSliceFlag{Name: "rect", Usage: "limit the steps to this x,y,width,height region, repeatable"},
			&cli.Float64Flag{Name: "opacity", Usage: "blend weight of each processed step", Value: 1},
		},
		Action: func(c *cli.Context) error {
			steps := make([]core.Step, 0, len(c.StringSlice("op")))
			for _, spec := range c.StringSlice("op") {
				step, err := core.ParseStep(spec)
				if err != nil {
					return err
				}
				steps = append(steps, step)
			}

			regions := core.NewRegions()
			for _, spec := range c.StringSlice("rect") {
				rect, err := parseRect(spec)
				if err != nil {
					return err
				}
				regions.AddRect(rect)
			}
			layered := regions.Len() > 0 || c.IsSet("opacity")

			p, err := env.open(c.String("input"))
			if err != nil {
				return err
			}
			defer p.Session().Close()

			for _, step := range steps {
				var scores map[string]float64
				if layered {
					scores, err = p.ApplyLayer(c.Context, core.Layer{
						Algorithm:  step.Algorithm,
						Parameters: step.Parameters,
						Regions:    regions,
						Opacity:    c.Float64("opacity"),
					})
				} else {
					scores, err = p.ApplyAlgorithm(c.Context, step.Algorithm, step.Parameters)
				}
				if err != nil {
					return fmt.Errorf("%s: %w", step, err)
				}
				fmt.Fprintf(c.App.Writer, "%s: %s\n", step, scoreLine(scores))
			}
			return env.save(c, p, "apply")
		},
	}
}

func operateCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "operate",
		Usage: "combine two images with an arithmetic, bitwise or blend operator",
		Flags: []cli.Flag{
			inputFlag(),
			&cli.StringFlag{Name: "second", Aliases: []string{"s"}, Usage: "second image (not needed for not)"},
			outputFlag(),
			&cli.StringFlag{Name: "operator", Aliases: []string{"p"}, Usage: fmt.Sprintf("one of %v", operators.All()), Required: true},
			&cli.Float64Flag{Name: "alpha", Usage: "blend weight of the input"},
			&cli.Float64Flag{Name: "beta", Usage: "blend weight of the second image"},
			&cli.Float64Flag{Name: "gamma", Usage: "blend offset"},
			&cli.Float64Flag{Name: "brightness", Usage: "divide gain"},
		},
		Action: func(c *cli.Context) error {
			op, err := operators.Parse(c.String("operator"))
			if err != nil {
				return err
			}
			opts := env.cfg.Operators
			if c.IsSet("alpha") {
				opts.Alpha = c.Float64("alpha")
			}
			if c.IsSet("beta") {
				opts.Beta = c.Float64("beta")
			}
			if c.IsSet("gamma") {
				opts.Gamma = c.Float64("gamma")
			}
			if c.IsSet("brightness") {
				opts.Brightness = c.Float64("brightness")
			}

			p, err := env.open(c.String("input"))
			if err != nil {
				return err
			}
			defer p.Session().Close()
			if second := c.String("second"); second != "" {
				if err := env.setSecondary(p, second); err != nil {
					return err
				}
			}

			scores, err := p.ApplyOperator(c.Context, op, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s: %s\n", op, scoreLine(scores))
			return env.save(c, p, string(op))
		},
	}
}

func compressCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "compress",
		Usage: "run-length (lossless) or DCT (lossy) compression with a size and quality report",
		Flags: []cli.Flag{
			inputFlag(),
			outputFlag(),
			&cli.StringFlag{Name: "method", Aliases: []string{"m"}, Usage: "rle or dct", Value: string(compression.RLE)},
			&cli.IntFlag{Name: "quality", Aliases: []string{"q"}, Usage: "JPEG quality of the downloadable rendition"},
			&cli.Float64Flag{Name: "keep", Usage: "fraction of DCT coefficients kept per axis"},
			&cli.StringFlag{Name: "jpeg", Usage: "also write the JPEG rendition here"},
			&cli.StringFlag{Name: "stream", Usage: "also write the run-length stream here (rle only)"},
		},
		Action: func(c *cli.Context) error {
			method, err := compression.ParseMethod(c.String("method"))
			if err != nil {
				return err
			}
			opts := env.cfg.Compression
			if c.IsSet("quality") {
				opts.Quality = c.Int("quality")
			}
			if c.IsSet("keep") {
				opts.KeepFraction = c.Float64("keep")
			}

			p, err := env.open(c.String("input"))
			if err != nil {
				return err
			}
			defer p.Session().Close()

			res, err := p.Compress(c.Context, method, opts)
			if err != nil {
				return err
			}
			defer res.Close()
			fmt.Fprintln(c.App.Writer, res.Summary())

			if path := c.String("jpeg"); path != "" {
				if err := os.WriteFile(path, res.JPEG, 0o644); err != nil {
					return err
				}
				env.report(c, path)
			}
			if path := c.String("stream"); path != "" {
				if res.Stream == nil {
					return fmt.Errorf("--stream needs --method %s", compression.RLE)
				}
				if err := os.WriteFile(path, res.Stream, 0o644); err != nil {
					return err
				}
				env.report(c, path)
			}
			return env.save(c, p, string(method))
		},
	}
}

func decompressCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "decompress",
		Usage: "rebuild an image from a run-length stream written by compress --stream",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "run-length stream", Required: true},
			outputFlag(),
		},
		Action: func(c *cli.Context) error {
			data, err := os.ReadFile(c.String("input"))
			if err != nil {
				return err
			}
			mat, err := compression.DecodeStream(data)
			if err != nil {
				return fmt.Errorf("%s: %w", c.String("input"), err)
			}
			defer mat.Close()

			output := c.String("output")
			if output == "" {
				output = filepath.Join(env.cfg.OutputDir, imageio.ResultName("decompressed", ".png"))
			}
			if err := env.loader.Save(mat, output); err != nil {
				return err
			}
			env.report(c, output)
			return nil
		},
	}
}

func matchCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "draw the best ORB feature matches between two images",
		Flags: []cli.Flag{
			inputFlag(),
			secondFlag(),
			outputFlag(),
			&cli.IntFlag{Name: "max-matches", Aliases: []string{"n"}, Usage: "matches to draw"},
		},
		Action: func(c *cli.Context) error {
			opts := env.cfg.Matching
			if c.IsSet("max-matches") {
				opts.MaxMatches = c.Int("max-matches")
			}

			p, err := env.open(c.String("input"))
			if err != nil {
				return err
			}
			defer p.Session().Close()
			if err := env.setSecondary(p, c.String("second")); err != nil {
				return err
			}

			res, err := p.Match(c.Context, opts)
			if err != nil {
				return err
			}
			defer res.Close()
			fmt.Fprintln(c.App.Writer, res.Summary())

			output := c.String("output")
			if output == "" {
				output = filepath.Join(env.cfg.OutputDir, imageio.ResultName("match", ".png"))
			}
			if err := env.loader.Save(res.Image, output); err != nil {
				return err
			}
			env.report(c, output)
			return nil
		},
	}
}

func stitchCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:      "stitch",
		Usage:     "stitch images, in order, into a panorama",
		ArgsUsage: "image1 image2 [image...]",
		Flags: []cli.Flag{
			outputFlag(),
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "stitch every image in this directory, in name order"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "panorama or scans"},
		},
		Action: func(c *cli.Context) error {
			opts := env.cfg.Stitching
			if c.IsSet("mode") {
				mode, err := stitching.ParseMode(c.String("mode"))
				if err != nil {
					return err
				}
				opts.Mode = mode
			}

			paths := c.Args().Slice()
			if dir := c.String("dir"); dir != "" {
				found, err := batch.ListInputs(dir, batch.DefaultPattern)
				if err != nil {
					return err
				}
				sort.Strings(found)
				paths = append(paths, found...)
			}

			mats, err := env.loader.LoadAll(c.Context, paths, system.Workers(env.cfg.Workers))
			if err != nil {
				return err
			}
			p := env.newPipeline()
			defer p.Session().Close()
			for _, m := range mats {
				err := p.Session().AddToList(m)
				m.Close()
				if err != nil {
					return err
				}
			}

			if err := p.Stitch(c.Context, opts); err != nil {
				return err
			}
			meta := p.Session().Metadata()
			fmt.Fprintf(c.App.Writer, "stitched %d images into %dx%d\n", len(mats), meta.Width, meta.Height)
			return env.save(c, p, "panorama")
		},
	}
}

func removeBackgroundCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:    "remove-bg",
		Aliases: []string{"bg"},
		Usage:   "whiten, or with --transparent clear, the background",
		Flags: []cli.Flag{
			inputFlag(),
			outputFlag(),
			&cli.StringFlag{Name: "method", Aliases: []string{"m"}, Usage: "threshold or kmeans"},
			&cli.BoolFlag{Name: "transparent", Aliases: []string{"t"}, Usage: "make near-white pixels transparent (write PNG)"},
			&cli.IntFlag{Name: "white-level", Usage: "per-channel level counted as white"},
		},
		Action: func(c *cli.Context) error {
			opts := env.cfg.Background
			if c.IsSet("method") {
				method, err := background.ParseMethod(c.String("method"))
				if err != nil {
					return err
				}
				opts.Method = method
			}
			if c.IsSet("transparent") {
				opts.Transparent = c.Bool("transparent")
			}
			if c.IsSet("white-level") {
				opts.WhiteLevel = c.Int("white-level")
			}

			p, err := env.open(c.String("input"))
			if err != nil {
				return err
			}
			defer p.Session().Close()

			scores, err := p.RemoveBackground(c.Context, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s: %s\n", opts.Method, scoreLine(scores))
			return env.save(c, p, "nobg")
		},
	}
}

func inpaintCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:  "inpaint",
		Usage: "repair the pixels marked by a mask image or rectangles",
		Flags: []cli.Flag{
			inputFlag(),
			outputFlag(),
			&cli.StringFlag{Name: "mask", Usage: "mask image; non-zero pixels are repaired"},
			&cli.StringSliceFlag{Name: "rect", Usage: "x,y,width,height region to repair, repeatable"},
			&cli.StringFlag{Name: "method", Aliases: []string{"m"}, Usage: "telea or ns"},
			&cli.Float64Flag{Name: "radius", Aliases: []string{"r"}, Usage: "inpainting neighbourhood radius"},
		},
		Action: func(c *cli.Context) error {
			opts := env.cfg.Restoration
			if c.IsSet("method") {
				method, err := restoration.ParseMethod(c.String("method"))
				if err != nil {
					return err
				}
				opts.Method = method
			}
			if c.IsSet("radius") {
				opts.Radius = c.Float64("radius")
			}

			regions := core.NewRegions()
			for _, spec := range c.StringSlice("rect") {
				rect, err := parseRect(spec)
				if err != nil {
					return err
				}
				regions.AddRect(rect)
			}
			mask := c.String("mask")
			if mask == "" && regions.Len() == 0 {
				return fmt.Errorf("%w: pass --mask or --rect", core.ErrNoMask)
			}

			p, err := env.open(c.String("input"))
			if err != nil {
				return err
			}
			defer p.Session().Close()

			var scores map[string]float64
			if regions.Len() > 0 {
				scores, err = p.InpaintRegions(c.Context, regions, opts)
			} else {
				m, loadErr := env.loader.Load(mask)
				if loadErr != nil {
					return loadErr
				}
				err = p.Session().SetMask(m)
				m.Close()
				if err == nil {
					scores, err = p.Inpaint(c.Context, opts)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s: %s\n", opts.Method, scoreLine(scores))
			return env.save(c, p, "inpaint")
		},
	}
}

// parseRect reads "x,y,width,height".
func parseRect(spec string) (image.Rectangle, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("rect %q: want x,y,width,height", spec)
	}
	var v [4]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("rect %q: %w", spec, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("rect %q: width and height must be positive", spec)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

func batchCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:    "batch",
		Aliases: []string{"b"},
		Usage:   "apply a YAML recipe to every matching image in a directory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "recipe", Aliases: []string{"r"}, Usage: "recipe file", Required: true},
			&cli.StringFlag{Name: "cron", Usage: "run on this cron schedule until interrupted, e.g. \"0 2 * * *\""},
		},
		Action: func(c *cli.Context) error {
			recipe, err := batch.LoadRecipe(c.String("recipe"))
			if err != nil {
				return err
			}
			workers := system.Workers(env.cfg.Workers)
			runner := batch.NewRunner(env.loader, env.recorder(), env.logger, workers)

			if spec := c.String("cron"); spec != "" {
				ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
				defer stop()
				return runner.Schedule(ctx, spec, recipe)
			}

			report, err := runner.Run(c.Context, recipe)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, report.String())
			for _, msg := range report.Errors {
				log.Warnln(msg)
			}
			return nil
		},
	}
}

func journalCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:    "journal",
		Aliases: []string{"j"},
		Usage:   "show recent journal entries",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "entries to show", Value: 20},
			&cli.StringFlag{Name: "page", Usage: "only entries from this page (editor, operators, batch, ...)"},
			&cli.BoolFlag{Name: "stats", Usage: "count entries per operation instead"},
		},
		Action: func(c *cli.Context) error {
			if env.store == nil {
				return fmt.Errorf("journal is not available (driver %q)", env.cfg.Journal.Driver)
			}
			w := c.App.Writer

			if c.Bool("stats") {
				stats, err := env.store.Stats(c.Context)
				if err != nil {
					return err
				}
				ops := make([]string, 0, len(stats))
				for op := range stats {
					ops = append(ops, op)
				}
				sort.Strings(ops)
				for _, op := range ops {
					fmt.Fprintf(w, "%-24s %d\n", op, stats[op])
				}
				return nil
			}

			entries, err := env.store.Recent(c.Context, c.Int("limit"), c.String("page"))
			if err != nil {
				return err
			}
			for _, e := range entries {
				quality := ""
				if e.PSNR != nil && e.SSIM != nil {
					quality = fmt.Sprintf(" psnr=%.2f ssim=%.4f", *e.PSNR, *e.SSIM)
				}
				fmt.Fprintf(w, "%s %-11s %-22s %-6s %s -> %s %dms%s %s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Page, e.Operation, e.Status,
					e.Input, e.Output, e.DurationMS, quality, e.Error)
			}
			return nil
		},
	}
}
