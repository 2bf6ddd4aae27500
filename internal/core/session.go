// Session state shared by every page: the working image with its undo
// history, plus the second image, mask and image list some pages need
package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"sona-picture-processing/internal/algorithms"
)

var (
	ErrNoImage       = errors.New("no image loaded")
	ErrNoSecondary   = errors.New("no second image loaded")
	ErrNoMask        = errors.New("no mask loaded")
	ErrNothingToUndo = errors.New("nothing to undo")
)

// ImageMetadata contains image information
type ImageMetadata struct {
	Width    int
	Height   int
	Channels int
	Type     gocv.MatType
	Format   string
}

func metadataOf(mat gocv.Mat, path string) ImageMetadata {
	return ImageMetadata{
		Width:    mat.Cols(),
		Height:   mat.Rows(),
		Channels: mat.Channels(),
		Type:     mat.Type(),
		Format:   formatFromPath(path),
	}
}

// Session owns every Mat it holds; getters hand out clones.
type Session struct {
	mu           sync.RWMutex
	original     gocv.Mat
	current      gocv.Mat
	history      []gocv.Mat
	historyLimit int
	secondary    gocv.Mat
	mask         gocv.Mat
	list         []gocv.Mat
	hasImage     bool
	sourcePath   string
	metadata     ImageMetadata
}

func NewSession(historyLimit int) *Session {
	return &Session{
		original:     gocv.NewMat(),
		current:      gocv.NewMat(),
		secondary:    gocv.NewMat(),
		mask:         gocv.NewMat(),
		historyLimit: max(historyLimit, 1),
	}
}

// Load replaces the working image and drops the undo history.
func (s *Session) Load(mat gocv.Mat, path string) error {
	if err := ValidateImage(mat); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearHistory()
	s.original.Close()
	s.current.Close()
	s.original = mat.Clone()
	s.current = mat.Clone()
	s.hasImage = true
	s.sourcePath = path
	s.metadata = metadataOf(mat, path)
	return nil
}

func (s *Session) HasImage() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasImage
}

func (s *Session) Metadata() ImageMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata
}

func (s *Session) SourcePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourcePath
}

// Original returns a copy of the image as loaded.
func (s *Session) Original() (gocv.Mat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasImage {
		return gocv.NewMat(), ErrNoImage
	}
	return s.original.Clone(), nil
}

// Current returns a copy of the working image.
func (s *Session) Current() (gocv.Mat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasImage {
		return gocv.NewMat(), ErrNoImage
	}
	return s.current.Clone(), nil
}

// Commit makes mat the working image and pushes the previous one onto the
// undo history, dropping the oldest entry past the limit.
func (s *Session) Commit(mat gocv.Mat) error {
	if err := ValidateImage(mat); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasImage {
		return ErrNoImage
	}

	s.history = append(s.history, s.current)
	if len(s.history) > s.historyLimit {
		s.history[0].Close()
		s.history = s.history[1:]
	}
	s.current = mat.Clone()
	s.metadata = metadataOf(s.current, s.sourcePath)
	return nil
}

// Undo restores the image before the last Commit.
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasImage {
		return ErrNoImage
	}
	if len(s.history) == 0 {
		return ErrNothingToUndo
	}

	last := len(s.history) - 1
	s.current.Close()
	s.current = s.history[last]
	s.history = s.history[:last]
	s.metadata = metadataOf(s.current, s.sourcePath)
	return nil
}

func (s *Session) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Reset returns to the loaded image and drops the undo history.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasImage {
		return ErrNoImage
	}
	s.clearHistory()
	s.current.Close()
	s.current = s.original.Clone()
	s.metadata = metadataOf(s.current, s.sourcePath)
	return nil
}

func (s *Session) SetSecondary(mat gocv.Mat) error {
	return s.setSlot(&s.secondary, mat)
}

func (s *Session) Secondary() (gocv.Mat, error) {
	return s.getSlot(&s.secondary, ErrNoSecondary)
}

func (s *Session) SetMask(mat gocv.Mat) error {
	return s.setSlot(&s.mask, mat)
}

func (s *Session) Mask() (gocv.Mat, error) {
	return s.getSlot(&s.mask, ErrNoMask)
}

func (s *Session) ClearMask() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mask.Close()
	s.mask = gocv.NewMat()
}

func (s *Session) setSlot(slot *gocv.Mat, mat gocv.Mat) error {
	if err := ValidateImage(mat); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	slot.Close()
	*slot = mat.Clone()
	return nil
}

func (s *Session) getSlot(slot *gocv.Mat, missing error) (gocv.Mat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if slot.Empty() {
		return gocv.NewMat(), missing
	}
	return slot.Clone(), nil
}

// AddToList appends a copy of mat to the image list used for stitching.
func (s *Session) AddToList(mat gocv.Mat) error {
	if err := ValidateImage(mat); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append(s.list, mat.Clone())
	return nil
}

// List returns copies of the image list; the caller closes them.
func (s *Session) List() []gocv.Mat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]gocv.Mat, len(s.list))
	for i, m := range s.list {
		out[i] = m.Clone()
	}
	return out
}

func (s *Session) ListLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}

func (s *Session) ClearList() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.list {
		m.Close()
	}
	s.list = nil
}

// Close releases every Mat the session holds.
func (s *Session) Close() {
	s.ClearList()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearHistory()
	for _, m := range []*gocv.Mat{&s.original, &s.current, &s.secondary, &s.mask} {
		m.Close()
		*m = gocv.NewMat()
	}
	s.hasImage = false
	s.sourcePath = ""
	s.metadata = ImageMetadata{}
}

func (s *Session) clearHistory() {
	for _, m := range s.history {
		m.Close()
	}
	s.history = nil
}

func formatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}

// ValidateImage validates an OpenCV Mat for basic requirements
func ValidateImage(mat gocv.Mat) error {
	if mat.Empty() {
		return fmt.Errorf("image is empty")
	}

	if mat.Cols() <= 0 || mat.Rows() <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", mat.Cols(), mat.Rows())
	}

	channels := mat.Channels()
	if channels != 1 && channels != 3 && channels != 4 {
		return fmt.Errorf("unsupported channel count: %d", channels)
	}

	if mat.Cols() > algorithms.MaxDimension || mat.Rows() > algorithms.MaxDimension {
		return fmt.Errorf("image too large: %dx%d (max: %d)", mat.Cols(), mat.Rows(), algorithms.MaxDimension)
	}

	return nil
}
