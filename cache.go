package featdetect

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/swdee/go-featdetect/features"
	"gocv.io/x/gocv"
	"io"
)

// ErrBadDatabaseCache is returned when a database cache stream is malformed
var ErrBadDatabaseCache = errors.New("malformed database cache")

const (
	// cacheMagic marks the start of a database cache
	cacheMagic = uint32(0x46444231) // "FDB1"
	// maxCacheString bounds label and name lengths read from a cache
	maxCacheString = 1 << 16
	// maxCacheEntries bounds class and image counts read from a cache
	maxCacheEntries = 1 << 20
)

// WriteCache stores the database features to w so a later run can skip
// extraction with ReadDatabaseCache.  Reference pixels and detection counts
// are not stored.
func (db *Database) WriteCache(w io.Writer) error {

	bw := bufio.NewWriter(w)

	hdr := []uint32{cacheMagic, uint32(db.kind), uint32(db.dim), uint32(len(db.classes))}

	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("error writing cache header: %w", err)
	}

	for _, c := range db.classes {

		if err := writeString(bw, c.Label); err != nil {
			return err
		}

		if err := binary.Write(bw, binary.LittleEndian, uint32(len(c.Images))); err != nil {
			return fmt.Errorf("error writing image count: %w", err)
		}

		for _, img := range c.Images {

			if err := writeString(bw, img.Name); err != nil {
				return err
			}

			dims := []uint32{uint32(img.Width), uint32(img.Height)}

			if err := binary.Write(bw, binary.LittleEndian, dims); err != nil {
				return fmt.Errorf("error writing image dimensions: %w", err)
			}

			if err := features.WriteSet(bw, img.Features); err != nil {
				return fmt.Errorf("error writing features of %s/%s: %w", c.Label, img.Name, err)
			}
		}
	}

	return bw.Flush()
}

// ReadDatabaseCache restores a Database written by WriteCache.  All counters
// start at zero.
func ReadDatabaseCache(r io.Reader) (*Database, error) {

	br := bufio.NewReader(r)

	var hdr [4]uint32

	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("error reading cache header: %w", err)
	}

	if hdr[0] != cacheMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrBadDatabaseCache, hdr[0])
	}

	kind := features.Kind(hdr[1])

	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %v", features.ErrInvalidKind, kind)
	}

	numClasses := int(hdr[3])

	if numClasses > maxCacheEntries {
		return nil, fmt.Errorf("%w: %d classes", ErrBadDatabaseCache, numClasses)
	}

	db := newDatabase(kind)

	if err := readClasses(br, db, numClasses); err != nil {
		db.Close()
		return nil, err
	}

	if err := db.checkDim(); err != nil {
		db.Close()
		return nil, err
	}

	if db.dim != int(hdr[2]) {
		db.Close()
		return nil, fmt.Errorf("%w: header dimension %d, features %d",
			ErrDimensionMismatch, hdr[2], db.dim)
	}

	return db, nil
}

// readClasses reads n classes into db.  Classes are added before their
// images are read so a failure part way leaves every allocated Mat reachable
// from db.
func readClasses(br *bufio.Reader, db *Database, n int) error {

	for i := 0; i < n; i++ {

		label, err := readString(br)

		if err != nil {
			return err
		}

		var numImages uint32

		if err := binary.Read(br, binary.LittleEndian, &numImages); err != nil {
			return fmt.Errorf("error reading image count: %w", err)
		}

		if numImages > maxCacheEntries {
			return fmt.Errorf("%w: %d images", ErrBadDatabaseCache, numImages)
		}

		entry := &ClassEntry{
			Label:  label,
			Images: make([]*ReferenceImage, numImages),
		}

		if err := db.add(entry); err != nil {
			return err
		}

		for j := range entry.Images {

			name, err := readString(br)

			if err != nil {
				return err
			}

			var dims [2]uint32

			if err := binary.Read(br, binary.LittleEndian, &dims); err != nil {
				return fmt.Errorf("error reading image dimensions: %w", err)
			}

			fs, err := features.ReadSet(br)

			if err != nil {
				return fmt.Errorf("error reading features of %s/%s: %w", label, name, err)
			}

			entry.Images[j] = &ReferenceImage{
				Name:     name,
				Width:    int(dims[0]),
				Height:   int(dims[1]),
				Image:    gocv.NewMat(),
				Features: fs,
			}
		}
	}

	return nil
}

// writeString writes a length prefixed string
func writeString(w io.Writer, s string) error {

	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return fmt.Errorf("error writing string length: %w", err)
	}

	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("error writing string: %w", err)
	}

	return nil
}

// readString reads a length prefixed string
func readString(r io.Reader) (string, error) {

	var n uint32

	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("error reading string length: %w", err)
	}

	if n > maxCacheString {
		return "", fmt.Errorf("%w: string length %d", ErrBadDatabaseCache, n)
	}

	buf := make([]byte, n)

	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("error reading string: %w", err)
	}

	return string(buf), nil
}
