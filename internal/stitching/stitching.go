// Panorama stitching of an ordered image list
package stitching

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"gocv.io/x/gocv"
)

var ErrNeedMoreImages = errors.New("stitching needs at least two images")

// Mode selects the OpenCV stitcher model
type Mode string

const (
	// Panorama assumes a rotating camera.
	Panorama Mode = "panorama"
	// Scans assumes flat, affinely related inputs such as document scans.
	Scans Mode = "scans"
)

func ParseMode(name string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(name))); m {
	case Panorama, Scans:
		return m, nil
	case "":
		return Panorama, nil
	}
	return "", fmt.Errorf("unknown stitching mode %q (want panorama or scans)", name)
}

// Options tunes Stitch
type Options struct {
	Mode Mode `yaml:"mode"`
	// MaxWidth downsizes wider inputs before stitching; 0 keeps full size.
	MaxWidth int `yaml:"max_width"`
}

func DefaultOptions() Options {
	return Options{Mode: Panorama, MaxWidth: 1600}
}

var statusMessages = map[gocv.StitcherStatus]string{
	gocv.StitcherErrNeedMoreImgs:           "not enough overlapping features; add images with more overlap",
	gocv.StitcherErrHomographyEstFail:      "homography estimation failed; the images may not overlap",
	gocv.StitcherErrCameraParamsAdjustFail: "camera parameter adjustment failed",
}

// Stitch combines images, in order, into one panorama.
func Stitch(images []gocv.Mat, opts Options) (gocv.Mat, error) {
	if len(images) < 2 {
		return gocv.NewMat(), fmt.Errorf("%w: got %d", ErrNeedMoreImages, len(images))
	}

	mode := gocv.StitcherPanorama
	if opts.Mode == Scans {
		mode = gocv.StitcherScans
	}

	inputs := make([]gocv.Mat, 0, len(images))
	defer func() {
		for _, m := range inputs {
			m.Close()
		}
	}()
	for i, img := range images {
		if img.Empty() {
			return gocv.NewMat(), fmt.Errorf("image %d is empty", i+1)
		}
		inputs = append(inputs, prepare(img, opts.MaxWidth))
	}

	stitcher := gocv.NewStitcher(mode)
	defer stitcher.Close()

	pano := gocv.NewMat()
	status := stitcher.Stitch(inputs, &pano)
	if status != gocv.StitcherOK {
		pano.Close()
		msg, ok := statusMessages[status]
		if !ok {
			msg = fmt.Sprintf("status %d", status)
		}
		return gocv.NewMat(), fmt.Errorf("stitching failed: %s", msg)
	}
	if pano.Empty() {
		pano.Close()
		return gocv.NewMat(), errors.New("stitching produced an empty image")
	}
	return pano, nil
}

// prepare returns a three-channel copy no wider than maxWidth.
func prepare(img gocv.Mat, maxWidth int) gocv.Mat {
	bgr := gocv.NewMat()
	switch img.Channels() {
	case 1:
		gocv.CvtColor(img, &bgr, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(img, &bgr, gocv.ColorBGRAToBGR)
	default:
		img.CopyTo(&bgr)
	}

	if maxWidth <= 0 || bgr.Cols() <= maxWidth {
		return bgr
	}
	defer bgr.Close()

	h := bgr.Rows() * maxWidth / bgr.Cols()
	small := gocv.NewMat()
	gocv.Resize(bgr, &small, image.Pt(maxWidth, max(h, 1)), 0, 0, gocv.InterpolationArea)
	return small
}
