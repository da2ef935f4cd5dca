package clearsky

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PipelineOptions wires the external collaborators into a Pipeline.
type PipelineOptions struct {
	// Transport delivers alerts. Nil disables alerting; the gate is still
	// consulted so the throttle window advances the same way.
	Transport AlertTransport
	// Sink receives annotated frames. Nil disables annotated output.
	Sink AnnotationSink
	// BoxColor for annotated frames. Zero value means DefaultBoxColor.
	BoxColor color.NRGBA
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Pipeline runs template matching, clustering and alert gating for one
// frame at a time. Process is safe for concurrent use.
type Pipeline struct {
	logger    *zap.Logger
	cfg       Config
	template  *Template
	gate      *NotificationGate
	transport AlertTransport
	sink      AnnotationSink
	boxColor  color.NRGBA
	now       func() time.Time
}

// NewPipeline validates cfg and builds a Pipeline around tmpl.
func NewPipeline(logger *zap.Logger, cfg Config, tmpl *Template, opts PipelineOptions) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection config: %w", err)
	}
	if tmpl == nil || tmpl.Mat.Empty() {
		return nil, fmt.Errorf("%w: template is empty", ErrDecode)
	}
	if cfg.Clustering == "" {
		cfg.Clustering = ClusteringRunning
	}

	p := &Pipeline{
		logger:    logger.Named("pipeline"),
		cfg:       cfg,
		template:  tmpl,
		gate:      NewNotificationGate(cfg.NotifyDelta),
		transport: opts.Transport,
		sink:      opts.Sink,
		boxColor:  opts.BoxColor,
		now:       opts.Clock,
	}
	if p.boxColor == (color.NRGBA{}) {
		p.boxColor = DefaultBoxColor
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Gate exposes the pipeline's notification gate.
func (p *Pipeline) Gate() *NotificationGate { return p.gate }

// Config returns the pipeline's detection configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Detect matches and clusters a frame without any side effects.
func (p *Pipeline) Detect(frame *Frame) ([]Detection, *ScoreMap, error) {
	scores, err := Match(frame.Gray, p.template)
	if err != nil {
		return nil, nil, err
	}

	var detections []Detection
	switch p.cfg.Clustering {
	case ClusteringNMS:
		detections = ClusterNMS(scores, p.cfg.DetectionThreshold, p.cfg.DistanceThreshold, p.template.Size())
	default:
		detections = Cluster(scores, p.cfg.DetectionThreshold, p.cfg.DistanceThreshold, p.template.Size())
	}
	return detections, scores, nil
}

// Process runs one detection on frame. Decode, dimension and match failures
// abort the run and are returned. Alert and annotated-output failures are
// logged and recorded on the Outcome without failing the run.
func (p *Pipeline) Process(ctx context.Context, frame *Frame) (*Outcome, error) {
	start := p.now()
	runID := uuid.NewString()
	log := p.logger.With(zap.String("run_id", runID), zap.String("file", frame.Name))

	log.Debug("Counting stars",
		zap.Int("width", frame.Gray.Cols()),
		zap.Int("height", frame.Gray.Rows()),
		zap.Duration("exposure", frame.Exposure),
	)

	detections, scores, err := p.Detect(frame)
	if err != nil {
		runsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("detection failed for %s: %w", frame.Name, err)
	}

	out := &Outcome{
		RunID:      runID,
		Name:       frame.Name,
		StarCount:  len(detections),
		Detections: detections,
	}
	out.PeakScore, _ = scores.Max()

	if p.sink != nil && frame.Source != nil {
		out.SinkErr = p.writeAnnotated(ctx, log, frame, detections)
	}

	out.Duration = p.now().Sub(start)
	runsTotal.WithLabelValues("ok").Inc()
	runDuration.Observe(out.Duration.Seconds())
	lastStarCount.Set(float64(out.StarCount))

	skyMean, _ := matMeanStdDev(frame.Gray)
	log.Info("Star count",
		zap.Int("star_count", out.StarCount),
		zap.Float32("peak_score", out.PeakScore),
		zap.Float64("sky_mean", skyMean),
		zap.Duration("elapsed", out.Duration),
	)

	if out.StarCount > p.cfg.StarCountThreshold {
		out.Permitted, out.Alerted, out.AlertErr = p.notify(ctx, log, out.StarCount)
	}
	return out, nil
}

func (p *Pipeline) writeAnnotated(ctx context.Context, log *zap.Logger, frame *Frame, detections []Detection) error {
	annotated := Annotate(frame.Source, detections, p.boxColor)
	if err := p.sink.WriteAnnotated(ctx, frame.Name, annotated); err != nil {
		if !errors.Is(err, ErrSinkWrite) {
			err = fmt.Errorf("%w: %w", ErrSinkWrite, err)
		}
		annotatedWritesTotal.WithLabelValues("error").Inc()
		log.Warn("Error writing detected image", zap.Error(err))
		return err
	}
	annotatedWritesTotal.WithLabelValues("ok").Inc()
	log.Debug("Detected file written")
	return nil
}

// notify asks the gate for permission and, if granted, sends one alert.
func (p *Pipeline) notify(ctx context.Context, log *zap.Logger, starCount int) (permitted, sent bool, err error) {
	if !p.gate.TryFire(p.now()) {
		alertsTotal.WithLabelValues("suppressed").Inc()
		log.Debug("Alert suppressed, notify interval not elapsed",
			zap.Duration("notify_delta", p.gate.Interval()),
			zap.Time("last_fire", p.gate.LastFire()),
		)
		return false, false, nil
	}

	if p.transport == nil {
		alertsTotal.WithLabelValues("disabled").Inc()
		log.Info("SMS notification disabled, no notification sent", zap.Int("star_count", starCount))
		return true, false, nil
	}

	receipt, err := p.transport.SendAlert(ctx, Alert{
		Recipient: p.cfg.Recipient,
		Message:   p.cfg.Message,
		APIKey:    p.cfg.APIKey,
	})
	if err == nil && !receipt.Success {
		err = fmt.Errorf("provider rejected alert: %s", receipt.Error)
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		alertsTotal.WithLabelValues("failed").Inc()
		log.Error("SMS notification send failed", zap.Error(err))
		return true, false, err
	}

	alertsTotal.WithLabelValues("sent").Inc()
	log.Info("SMS notification sent", zap.Int("star_count", starCount))
	if receipt.HasQuota {
		log.Info("SMS quota remaining", zap.Int("quota_remaining", receipt.QuotaRemaining))
		if receipt.QuotaRemaining < 1 {
			log.Warn("SMS quota exceeded, top up!")
		}
	}
	return true, true, nil
}
