// ORB feature matching between two images
package matching

import (
	"errors"
	"fmt"
	"image/color"
	"sort"

	"gocv.io/x/gocv"
)

var ErrNoFeatures = errors.New("no features detected")

// Options tunes Match
type Options struct {
	// MaxMatches is how many of the best matches are drawn.
	MaxMatches int `yaml:"max_matches"`
}

func DefaultOptions() Options {
	return Options{MaxMatches: 10}
}

// Result of matching a query image against a train image. The caller must Close it.
type Result struct {
	// Image shows both inputs side by side with the best matches drawn.
	Image          gocv.Mat
	QueryKeypoints int
	TrainKeypoints int
	Matches        int
	Drawn          int
	// BestDistance is the Hamming distance of the best match.
	BestDistance float64
}

func (r *Result) Close() {
	r.Image.Close()
}

var matchColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// Match detects ORB keypoints in both images, matches their descriptors with a
// cross-checked brute-force Hamming matcher and draws the best matches.
func Match(query, train gocv.Mat, opts Options) (Result, error) {
	if query.Empty() || train.Empty() {
		return Result{}, errors.New("matching needs two images")
	}
	if opts.MaxMatches <= 0 {
		opts.MaxMatches = DefaultOptions().MaxMatches
	}

	orb := gocv.NewORB()
	defer orb.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	kp1, des1 := orb.DetectAndCompute(query, mask)
	defer des1.Close()
	kp2, des2 := orb.DetectAndCompute(train, mask)
	defer des2.Close()

	if des1.Empty() {
		return Result{}, fmt.Errorf("first image: %w", ErrNoFeatures)
	}
	if des2.Empty() {
		return Result{}, fmt.Errorf("second image: %w", ErrNoFeatures)
	}

	bf := gocv.NewBFMatcherWithParams(gocv.NormHamming, true)
	defer bf.Close()

	matches := bf.Match(des1, des2)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	best := matches
	if len(best) > opts.MaxMatches {
		best = best[:opts.MaxMatches]
	}

	out := gocv.NewMat()
	gocv.DrawMatches(query, kp1, train, kp2, best, &out, matchColor, matchColor, nil, gocv.NotDrawSinglePoints)
	if out.Empty() {
		out.Close()
		return Result{}, errors.New("drawing matches produced an empty image")
	}

	res := Result{
		Image:          out,
		QueryKeypoints: len(kp1),
		TrainKeypoints: len(kp2),
		Matches:        len(matches),
		Drawn:          len(best),
	}
	if len(best) > 0 {
		res.BestDistance = best[0].Distance
	}
	return res, nil
}

// Summary is a one-line report of the match counts.
func (r Result) Summary() string {
	return fmt.Sprintf("%d/%d keypoints, %d matches, best %d drawn (distance %.0f)",
		r.QueryKeypoints, r.TrainKeypoints, r.Matches, r.Drawn, r.BestDistance)
}
