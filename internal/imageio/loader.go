// Image loading and saving: OpenCV codecs first, Go decoders as fallback,
// and the first page of a PDF
package imageio

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

var readFormats = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp", ".webp", ".pdf"}

var writeFormats = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp"}

// ImageLoader handles image file operations
type ImageLoader struct {
	logger logrus.FieldLogger
	pdfDPI int
	// JPEGQuality is used by Save for .jpg and .jpeg files.
	JPEGQuality int
}

func NewImageLoader(logger logrus.FieldLogger, pdfDPI int) *ImageLoader {
	if pdfDPI <= 0 {
		pdfDPI = 150
	}
	return &ImageLoader{logger: logger, pdfDPI: pdfDPI, JPEGQuality: 95}
}

// ReadFormats lists the file extensions Load accepts.
func ReadFormats() []string { return append([]string(nil), readFormats...) }

func WriteFormats() []string { return append([]string(nil), writeFormats...) }

func IsReadable(path string) bool { return hasExt(path, readFormats) }

func IsWritable(path string) bool { return hasExt(path, writeFormats) }

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads path as a BGR Mat. PDFs contribute their first page.
func (il *ImageLoader) Load(path string) (gocv.Mat, error) {
	il.logger.WithField("path", path).Debug("Loading image")

	if !IsReadable(path) {
		return gocv.NewMat(), fmt.Errorf("unsupported image format: %s", path)
	}

	var (
		mat gocv.Mat
		err error
	)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		mat, err = il.loadPDF(path)
	} else {
		mat, err = il.loadFile(path)
	}
	if err != nil {
		return gocv.NewMat(), err
	}

	il.logger.WithFields(logrus.Fields{
		"path":     path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
		"channels": mat.Channels(),
	}).Info("Image loaded")
	return mat, nil
}

func (il *ImageLoader) loadFile(path string) (gocv.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if !mat.Empty() {
		return mat, nil
	}
	mat.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to load image: %w", err)
	}
	return il.decodeGo(data, path)
}

// LoadBytes decodes an in-memory image file.
func (il *ImageLoader) LoadBytes(data []byte, name string) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), fmt.Errorf("image %s is empty", name)
	}
	if mat, err := gocv.IMDecode(data, gocv.IMReadColor); err == nil && !mat.Empty() {
		return mat, nil
	} else if err == nil {
		mat.Close()
	}
	return il.decodeGo(data, name)
}

// decodeGo handles formats the OpenCV build lacks, such as WebP.
func (il *ImageLoader) decodeGo(data []byte, name string) (gocv.Mat, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to decode image %s: %w", name, err)
	}
	il.logger.WithFields(logrus.Fields{"name": name, "format": format}).Debug("Decoded with Go image codec")
	return FromImage(img)
}

func (il *ImageLoader) loadPDF(path string) (gocv.Mat, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to open pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return gocv.NewMat(), fmt.Errorf("pdf %s has no pages", path)
	}
	img, err := doc.ImageDPI(0, float64(il.pdfDPI))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to render pdf page: %w", err)
	}
	return FromImage(img)
}

// LoadAll loads paths concurrently, keeping their order. On error every
// loaded Mat is closed.
func (il *ImageLoader) LoadAll(ctx context.Context, paths []string, workers int) ([]gocv.Mat, error) {
	mats := make([]gocv.Mat, len(paths))
	for i := range mats {
		mats[i] = gocv.NewMat()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			mat, err := il.Load(path)
			if err != nil {
				return err
			}
			mats[i].Close()
			mats[i] = mat
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, m := range mats {
			m.Close()
		}
		return nil, err
	}
	return mats, nil
}

// Save writes mat, choosing the codec from the extension.
func (il *ImageLoader) Save(mat gocv.Mat, path string) error {
	il.logger.WithField("path", path).Debug("Saving image")

	if mat.Empty() {
		return fmt.Errorf("cannot save empty image")
	}
	if !IsWritable(path) {
		return fmt.Errorf("unsupported image format: %s", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	ok := false
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		// JPEG has no alpha channel.
		src := mat
		if mat.Channels() == 4 {
			src = gocv.NewMat()
			defer src.Close()
			gocv.CvtColor(mat, &src, gocv.ColorBGRAToBGR)
		}
		ok = gocv.IMWriteWithParams(path, src, []int{gocv.IMWriteJpegQuality, il.JPEGQuality})
	default:
		ok = gocv.IMWrite(path, mat)
	}
	if !ok {
		return fmt.Errorf("failed to save image: %s", path)
	}

	il.logger.WithFields(logrus.Fields{
		"path":     path,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
		"channels": mat.Channels(),
	}).Info("Image saved")
	return nil
}
