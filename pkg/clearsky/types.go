package clearsky

import (
	"context"
	"fmt"
	"image"
	"time"
)

// ClusteringMode selects how raw template matches are reduced to stars.
type ClusteringMode string

const (
	// ClusteringRunning is the scan-order running-distance filter. Default.
	ClusteringRunning ClusteringMode = "running"
	// ClusteringNMS is greedy non-maximum suppression by descending score.
	ClusteringNMS ClusteringMode = "nms"
)

// Config is the immutable detection configuration. It is built once at
// startup and never modified by the pipeline.
type Config struct {
	// StarCountThreshold: an alert is considered when the count exceeds it.
	StarCountThreshold int
	// DistanceThreshold in pixels between candidates of distinct stars.
	DistanceThreshold float64
	// DetectionThreshold is the minimum TM_CCOEFF_NORMED score of a candidate.
	DetectionThreshold float64
	// NotifyDelta is the minimum interval between two permitted alerts.
	NotifyDelta time.Duration
	Clustering  ClusteringMode

	// Alert payload.
	Recipient string
	Message   string
	APIKey    string
}

// Validate checks the thresholds for values no detection run could use.
func (c Config) Validate() error {
	if c.StarCountThreshold < 0 {
		return fmt.Errorf("star count threshold must be >= 0, got %d", c.StarCountThreshold)
	}
	if c.DistanceThreshold < 0 {
		return fmt.Errorf("distance threshold must be >= 0, got %f", c.DistanceThreshold)
	}
	if c.DetectionThreshold < -1 || c.DetectionThreshold > 1 {
		return fmt.Errorf("detection threshold must be in [-1, 1], got %f", c.DetectionThreshold)
	}
	if c.NotifyDelta < 0 {
		return fmt.Errorf("notify delta must be >= 0, got %s", c.NotifyDelta)
	}
	switch c.Clustering {
	case "", ClusteringRunning, ClusteringNMS:
	default:
		return fmt.Errorf("unknown clustering mode %q", c.Clustering)
	}
	return nil
}

// ScoreMap holds one correlation score per valid template position, row-major.
type ScoreMap struct {
	Width  int
	Height int
	Scores []float32
}

// NewScoreMap allocates a zeroed ScoreMap.
func NewScoreMap(width, height int) *ScoreMap {
	return &ScoreMap{Width: width, Height: height, Scores: make([]float32, width*height)}
}

func (s *ScoreMap) At(x, y int) float32     { return s.Scores[y*s.Width+x] }
func (s *ScoreMap) Set(x, y int, v float32) { s.Scores[y*s.Width+x] = v }

// Max returns the highest score and its position. An empty map returns (0, (0,0)).
func (s *ScoreMap) Max() (float32, image.Point) {
	var best float32
	var at image.Point
	for i, v := range s.Scores {
		if i == 0 || v > best {
			best = v
			at = image.Pt(i%s.Width, i/s.Width)
		}
	}
	return best, at
}

// Detection is one accepted, deduplicated star.
type Detection struct {
	Position image.Point
	Box      image.Rectangle
	Score    float32
}

// Alert is the payload handed to an AlertTransport.
type Alert struct {
	Recipient string
	Message   string
	APIKey    string
}

// AlertReceipt is what the transport reports back.
type AlertReceipt struct {
	Success        bool
	QuotaRemaining int
	HasQuota       bool
	Error          string
}

// AlertTransport delivers a clear-sky alert.
type AlertTransport interface {
	SendAlert(ctx context.Context, alert Alert) (AlertReceipt, error)
}

// AnnotationSink persists an annotated copy of a processed frame. name is
// the source frame's identifier.
type AnnotationSink interface {
	WriteAnnotated(ctx context.Context, name string, img image.Image) error
}

// Outcome is the result of one successful detection run.
type Outcome struct {
	RunID      string
	Name       string
	StarCount  int
	Detections []Detection
	PeakScore  float32
	// Permitted is true when the notification gate granted an alert.
	Permitted bool
	// Alerted is true when the transport confirmed delivery.
	Alerted  bool
	AlertErr error
	SinkErr  error
	Duration time.Duration
}
