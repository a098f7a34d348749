package stream

import (
	"context"
	"github.com/swdee/go-featdetect"
	"gocv.io/x/gocv"
)

// Sink receives every processed frame with its detections.  Returning false
// stops the stream.
type Sink func(frame gocv.Mat, res featdetect.Result) bool

// Run feeds frames from src through det one at a time and hands each result
// to sink, which may be nil.  It returns the number of frames processed when
// the stream ends, sink returns false, or ctx is cancelled, in which case the
// context error is returned.
func Run(ctx context.Context, src FrameSource, det featdetect.Detector, sink Sink) (int, error) {

	n := 0

	for {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		default:
		}

		frame, ok := src.Next()

		if !ok {
			return n, nil
		}

		res := det.Detect(frame)
		n++

		if sink != nil && !sink(frame, res) {
			return n, nil
		}
	}
}
