package imageio

import (
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// FromImage converts a Go image into a BGR Mat, or BGRA when it has transparency.
func FromImage(img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.NewMat(), fmt.Errorf("nil image")
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && !o.Opaque() {
		return gocv.ImageToMatRGBA(img)
	}
	return gocv.ImageToMatRGB(img)
}

// ToImage converts mat to a Go image for display.
func ToImage(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("cannot convert empty image")
	}
	if mat.Type() != gocv.MatTypeCV8UC1 && mat.Type() != gocv.MatTypeCV8UC3 && mat.Type() != gocv.MatTypeCV8UC4 {
		converted := gocv.NewMat()
		defer converted.Close()
		mat.ConvertTo(&converted, gocv.MatTypeCV8U)
		return converted.ToImage()
	}
	return mat.ToImage()
}

// Thumbnail fits mat inside a size x size box.
func Thumbnail(mat gocv.Mat, size int) (image.Image, error) {
	img, err := ToImage(mat)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() <= size && b.Dy() <= size {
		return img, nil
	}
	return imaging.Fit(img, size, size, imaging.Lanczos), nil
}

// EncodePNG returns mat as PNG bytes.
func EncodePNG(mat gocv.Mat) ([]byte, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("cannot encode empty image")
	}
	buf, err := gocv.IMEncode(gocv.PNGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

const dataURIPrefix = "data:image/png;base64,"

// DataURI returns mat as a base64 PNG data URI.
func DataURI(mat gocv.Mat) (string, error) {
	png, err := EncodePNG(mat)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// DecodeDataURI reverses DataURI.
func DecodeDataURI(uri string) (gocv.Mat, error) {
	payload, ok := strings.CutPrefix(uri, dataURIPrefix)
	if !ok {
		return gocv.NewMat(), fmt.Errorf("not a png data uri")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("decode data uri: %w", err)
	}
	return gocv.IMDecode(data, gocv.IMReadUnchanged)
}

// ResultName returns a unique file name such as "gaussian-<uuid>.png".
func ResultName(prefix, ext string) string {
	if prefix == "" {
		prefix = "result"
	}
	if ext == "" {
		ext = ".png"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s-%s%s", prefix, uuid.NewString(), ext)
}
