package featdetect

import (
	"github.com/swdee/go-featdetect/features"
	"sync"
)

// ExtractorPool is a simple pool of feature extractors of the same kind.
// OpenCV detectors keep internal state so each goroutine must Get its own
// extractor and Return it when done.
type ExtractorPool struct {
	// pool of extractors
	extractors chan features.Extractor
	// size of pool
	size  int
	close sync.Once
}

// NewExtractorPool creates a pool of size extractors of the given kind
func NewExtractorPool(size int, kind features.Kind) (*ExtractorPool, error) {
	return newExtractorPool(size, func() (features.Extractor, error) {
		return features.NewExtractor(kind)
	})
}

// newExtractorPool creates a pool filled by calling factory size times
func newExtractorPool(size int, factory func() (features.Extractor, error)) (*ExtractorPool, error) {

	if size < 1 {
		size = 1
	}

	p := &ExtractorPool{
		extractors: make(chan features.Extractor, size),
		size:       size,
	}

	for i := 0; i < size; i++ {
		ext, err := factory()

		if err != nil {
			// close any instances that may have been created before receiving
			// the error
			p.Close()
			return nil, err
		}

		// attach to pool
		p.Return(ext)
	}

	return p, nil
}

// Get an extractor from the pool, blocking until one is free
func (p *ExtractorPool) Get() features.Extractor {
	return <-p.extractors
}

// Return an extractor to the pool
func (p *ExtractorPool) Return(ext features.Extractor) {
	select {
	case p.extractors <- ext:
	default:
		// pool is full or closed
	}
}

// Size returns the number of extractors in the pool
func (p *ExtractorPool) Size() int {
	return p.size
}

// Close the pool and all extractors in it
func (p *ExtractorPool) Close() {
	p.close.Do(func() {
		// close channel
		close(p.extractors)

		// close all extractors
		for next := range p.extractors {
			_ = next.Close()
		}
	})
}
