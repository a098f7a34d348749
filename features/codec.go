package features

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/x448/float16"
	"io"
	"math"
)

var (
	// ErrBadCache is returned when a feature cache stream is malformed
	ErrBadCache = errors.New("malformed feature cache")
)

// setMagic marks the start of an encoded FeatureSet
const setMagic = uint32(0x46534631) // "FSF1"

// maxCacheCount bounds keypoint counts and dimensions read from a cache so a
// corrupt stream can't trigger huge allocations
const maxCacheCount = 1 << 24

// WriteSet encodes fs to w.  Keypoints are stored as float32 and descriptors
// as float16, which halves the size of a SIFT cache with no measurable effect
// on L2 matching of normalised descriptors.
//
// Layout (little endian):
//
//	magic uint32, count uint32, dim uint32,
//	count * (x, y, size, angle, response float32, octave int32),
//	count * dim * float16
func WriteSet(w io.Writer, fs FeatureSet) error {

	bw := bufio.NewWriter(w)
	dim := fs.Dim()

	hdr := []uint32{setMagic, uint32(fs.Len()), uint32(dim)}

	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("error writing feature header: %w", err)
	}

	for i := 0; i < fs.Len(); i++ {
		kp := fs.Keypoints[i]

		rec := struct {
			X, Y, Size, Angle, Response float32
			Octave                      int32
		}{
			float32(kp.X), float32(kp.Y), float32(kp.Size),
			float32(kp.Angle), float32(kp.Response), int32(kp.Octave),
		}

		if err := binary.Write(bw, binary.LittleEndian, rec); err != nil {
			return fmt.Errorf("error writing keypoint %d: %w", i, err)
		}
	}

	buf := make([]uint16, dim)

	for i, d := range fs.Descriptors {

		if len(d) != dim {
			return fmt.Errorf("descriptor %d has dimension %d, expected %d",
				i, len(d), dim)
		}

		for j, v := range d {
			buf[j] = float16.Fromfloat32(v).Bits()
		}

		if err := binary.Write(bw, binary.LittleEndian, buf); err != nil {
			return fmt.Errorf("error writing descriptor %d: %w", i, err)
		}
	}

	return bw.Flush()
}

// ReadSet decodes a FeatureSet written by WriteSet
func ReadSet(r io.Reader) (FeatureSet, error) {

	var hdr [3]uint32

	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return FeatureSet{}, fmt.Errorf("error reading feature header: %w", err)
	}

	if hdr[0] != setMagic {
		return FeatureSet{}, fmt.Errorf("%w: bad magic %#x", ErrBadCache, hdr[0])
	}

	count, dim := int(hdr[1]), int(hdr[2])

	if count > maxCacheCount || dim > maxCacheCount {
		return FeatureSet{}, fmt.Errorf("%w: count=%d dim=%d", ErrBadCache, count, dim)
	}

	if count == 0 {
		return FeatureSet{}, nil
	}

	if dim == 0 {
		return FeatureSet{}, fmt.Errorf("%w: %d keypoints with no descriptor values", ErrBadCache, count)
	}

	fs := FeatureSet{
		Keypoints:   make([]Keypoint, count),
		Descriptors: make([]Descriptor, count),
	}

	for i := 0; i < count; i++ {
		var rec struct {
			X, Y, Size, Angle, Response float32
			Octave                      int32
		}

		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return FeatureSet{}, fmt.Errorf("error reading keypoint %d: %w", i, err)
		}

		fs.Keypoints[i] = Keypoint{
			X:        float64(rec.X),
			Y:        float64(rec.Y),
			Size:     float64(rec.Size),
			Angle:    float64(rec.Angle),
			Response: float64(rec.Response),
			Octave:   int(rec.Octave),
		}
	}

	buf := make([]uint16, dim)

	for i := 0; i < count; i++ {

		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return FeatureSet{}, fmt.Errorf("error reading descriptor %d: %w", i, err)
		}

		d := make(Descriptor, dim)

		for j, bits := range buf {
			v := float16.Frombits(bits).Float32()

			if math.IsNaN(float64(v)) {
				return FeatureSet{}, fmt.Errorf("%w: NaN in descriptor %d", ErrBadCache, i)
			}

			d[j] = v
		}

		fs.Descriptors[i] = d
	}

	return fs, nil
}
