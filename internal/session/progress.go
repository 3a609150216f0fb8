package session

import (
	"fmt"
	"strconv"
	"strings"
)

// speedScale is the fixed sub-unit scale of the speed field on the wire.
const speedScale = 1000

// ProgressSample is a normalized backend progress payload. Samples may
// arrive out of order; no monotonicity is assumed.
type ProgressSample struct {
	BytesTransferred int64
	TotalBytes       int64
	SpeedBps         float64
	Percentage       float64
}

// ParseProgress normalizes the colon-delimited triple emitted by the
// transfer engine: bytes-transferred, total-bytes and speed in 1/1000
// bytes per second.
func ParseProgress(payload string) (ProgressSample, error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		return ProgressSample{}, fmt.Errorf("expected 3 fields in progress payload, got %d", len(parts))
	}
	bytesTransferred, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ProgressSample{}, fmt.Errorf("parsing bytes transferred: %w", err)
	}
	totalBytes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ProgressSample{}, fmt.Errorf("parsing total bytes: %w", err)
	}
	speedScaled, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return ProgressSample{}, fmt.Errorf("parsing speed: %w", err)
	}
	if bytesTransferred < 0 || totalBytes < 0 || speedScaled < 0 {
		return ProgressSample{}, fmt.Errorf("negative field in progress payload %q", payload)
	}

	sample := ProgressSample{
		BytesTransferred: bytesTransferred,
		TotalBytes:       totalBytes,
		SpeedBps:         float64(speedScaled) / speedScale,
	}
	if totalBytes > 0 {
		sample.Percentage = float64(bytesTransferred) / float64(totalBytes) * 100
	}
	return sample, nil
}
