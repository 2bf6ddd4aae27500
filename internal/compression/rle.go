package compression

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"gocv.io/x/gocv"

	"sona-picture-processing/internal/algorithms"
)

var ErrCorruptStream = errors.New("corrupt run-length stream")

// Run is one (value, count) pair
type Run struct {
	Value uint8
	Count uint32
}

// RLEImage holds the run-length encoding of an 8-bit image, one run list per
// channel over the row-major samples of that channel.
type RLEImage struct {
	Rows     int
	Cols     int
	Channels [][]Run
}

// EncodeRLE run-length encodes every channel of an 8-bit image.
func EncodeRLE(mat gocv.Mat) (RLEImage, error) {
	if mat.Empty() {
		return RLEImage{}, errors.New("input image is empty")
	}
	if mat.Type()&0x7 != gocv.MatTypeCV8U {
		return RLEImage{}, fmt.Errorf("run-length encoding needs an 8-bit image, got type %v", mat.Type())
	}

	nch := mat.Channels()
	samples := mat.ToBytes()
	out := RLEImage{Rows: mat.Rows(), Cols: mat.Cols(), Channels: make([][]Run, nch)}

	for c := 0; c < nch; c++ {
		var runs []Run
		for i := c; i < len(samples); i += nch {
			v := samples[i]
			if n := len(runs); n > 0 && runs[n-1].Value == v {
				runs[n-1].Count++
				continue
			}
			runs = append(runs, Run{Value: v, Count: 1})
		}
		out.Channels[c] = runs
	}
	return out, nil
}

// DecodeRLE rebuilds the image encoded by EncodeRLE.
func DecodeRLE(img RLEImage) (gocv.Mat, error) {
	nch := len(img.Channels)
	mt, err := matType(nch)
	if err != nil {
		return gocv.NewMat(), err
	}

	if err := img.check(); err != nil {
		return gocv.NewMat(), err
	}

	pixels := img.Rows * img.Cols
	samples := make([]byte, pixels*nch)
	for c, runs := range img.Channels {
		pos := 0
		for _, r := range runs {
			for k := 0; k < int(r.Count); k++ {
				samples[(pos+k)*nch+c] = r.Value
			}
			pos += int(r.Count)
		}
	}
	return algorithms.FromBytes(img.Rows, img.Cols, mt, samples)
}

// check verifies the dimensions are in range and that every channel's runs
// cover exactly Rows*Cols samples.
func (r RLEImage) check() error {
	if r.Rows <= 0 || r.Cols <= 0 || r.Rows > algorithms.MaxDimension || r.Cols > algorithms.MaxDimension {
		return fmt.Errorf("%w: bad dimensions %dx%d (max %d)", ErrCorruptStream, r.Cols, r.Rows, algorithms.MaxDimension)
	}
	pixels := uint64(r.Rows) * uint64(r.Cols)
	for c, runs := range r.Channels {
		var total uint64
		for _, run := range runs {
			total += uint64(run.Count)
			if total > pixels {
				return fmt.Errorf("%w: channel %d overflows %d pixels", ErrCorruptStream, c, pixels)
			}
		}
		if total != pixels {
			return fmt.Errorf("%w: channel %d has %d of %d pixels", ErrCorruptStream, c, total, pixels)
		}
	}
	return nil
}

func matType(channels int) (gocv.MatType, error) {
	switch channels {
	case 1:
		return gocv.MatTypeCV8UC1, nil
	case 2:
		return gocv.MatTypeCV8UC2, nil
	case 3:
		return gocv.MatTypeCV8UC3, nil
	case 4:
		return gocv.MatTypeCV8UC4, nil
	}
	return 0, fmt.Errorf("%w: unsupported channel count %d", ErrCorruptStream, channels)
}

// RunCount is the total number of runs over all channels.
func (r RLEImage) RunCount() int {
	n := 0
	for _, runs := range r.Channels {
		n += len(runs)
	}
	return n
}

// EncodedSize is the byte length of Bytes without building it.
func (r RLEImage) EncodedSize() int {
	var scratch [binary.MaxVarintLen64]byte
	size := binary.PutUvarint(scratch[:], uint64(r.Rows)) +
		binary.PutUvarint(scratch[:], uint64(r.Cols)) +
		binary.PutUvarint(scratch[:], uint64(len(r.Channels)))
	for _, runs := range r.Channels {
		size += binary.PutUvarint(scratch[:], uint64(len(runs)))
		for _, run := range runs {
			size += 1 + binary.PutUvarint(scratch[:], uint64(run.Count))
		}
	}
	return size
}

// Bytes serializes the runs: uvarint rows, cols and channel count, then per
// channel a uvarint run count followed by (value byte, uvarint count) pairs.
func (r RLEImage) Bytes() []byte {
	buf := make([]byte, 0, r.EncodedSize())
	buf = binary.AppendUvarint(buf, uint64(r.Rows))
	buf = binary.AppendUvarint(buf, uint64(r.Cols))
	buf = binary.AppendUvarint(buf, uint64(len(r.Channels)))
	for _, runs := range r.Channels {
		buf = binary.AppendUvarint(buf, uint64(len(runs)))
		for _, run := range runs {
			buf = append(buf, run.Value)
			buf = binary.AppendUvarint(buf, uint64(run.Count))
		}
	}
	return buf
}

// ParseRLE reads a stream written by Bytes.
func ParseRLE(data []byte) (RLEImage, error) {
	pos := 0
	next := func() (uint64, error) {
		v, n := binary.Uvarint(data[pos:])
		if n <= 0 {
			return 0, fmt.Errorf("%w: bad varint at offset %d", ErrCorruptStream, pos)
		}
		pos += n
		return v, nil
	}

	var header [3]uint64
	for i := range header {
		v, err := next()
		if err != nil {
			return RLEImage{}, err
		}
		header[i] = v
	}
	if header[2] == 0 || header[2] > 4 {
		return RLEImage{}, fmt.Errorf("%w: unsupported channel count %d", ErrCorruptStream, header[2])
	}
	if header[0] == 0 || header[1] == 0 || header[0] > algorithms.MaxDimension || header[1] > algorithms.MaxDimension {
		return RLEImage{}, fmt.Errorf("%w: bad dimensions %dx%d", ErrCorruptStream, header[1], header[0])
	}

	img := RLEImage{Rows: int(header[0]), Cols: int(header[1]), Channels: make([][]Run, header[2])}
	for c := range img.Channels {
		count, err := next()
		if err != nil {
			return RLEImage{}, err
		}
		if count > uint64(len(data)) {
			return RLEImage{}, fmt.Errorf("%w: run count %d exceeds stream", ErrCorruptStream, count)
		}
		runs := make([]Run, 0, count)
		for i := uint64(0); i < count; i++ {
			if pos >= len(data) {
				return RLEImage{}, fmt.Errorf("%w: truncated stream", ErrCorruptStream)
			}
			value := data[pos]
			pos++
			n, err := next()
			if err != nil {
				return RLEImage{}, err
			}
			if n == 0 || n > math.MaxUint32 {
				return RLEImage{}, fmt.Errorf("%w: run length %d", ErrCorruptStream, n)
			}
			runs = append(runs, Run{Value: value, Count: uint32(n)})
		}
		img.Channels[c] = runs
	}
	if pos != len(data) {
		return RLEImage{}, fmt.Errorf("%w: %d trailing bytes", ErrCorruptStream, len(data)-pos)
	}
	if err := img.check(); err != nil {
		return RLEImage{}, err
	}
	return img, nil
}

// DecodeStream parses a serialized stream and rebuilds its image.
func DecodeStream(data []byte) (gocv.Mat, error) {
	img, err := ParseRLE(data)
	if err != nil {
		return gocv.NewMat(), err
	}
	return DecodeRLE(img)
}
