package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clearskyalarm/internal/config"
	"clearskyalarm/internal/sms"
	"clearskyalarm/internal/status"
	"clearskyalarm/internal/watch"
	"clearskyalarm/pkg/clearsky"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch the capture directory and alert on clear skies",
		Long: `Watch imagePath (and every directory below it) for new captures. Each
capture matching imageTag and imageType is processed once it has settled.

Examples:
  # Run with the default config file
  clearskyalarm run

  # Run with debug logging
  clearskyalarm run -c /etc/clearskyalarm.json --debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runAlarm(ctx)
		},
	}
}

// alarm bundles what the watch loop needs per capture.
type alarm struct {
	logger   *zap.Logger
	pipeline *clearsky.Pipeline
	tracker  *status.Tracker
}

func runAlarm(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(debug || cfg.Debug)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting clearskyalarm",
		zap.String("version", version),
		zap.String("backend", clearsky.Backend),
		zap.String("config", configPath),
		zap.Any("settings", cfg.Redacted()),
	)

	pipeline, closeTemplate, err := buildPipeline(logger, cfg, true)
	if err != nil {
		return err
	}
	defer closeTemplate()

	w, err := watch.New(logger, watch.Options{
		Root:   cfg.ImagePath,
		Filter: cfg.CaptureFilter(),
		Settle: cfg.SettleDelay(),
	})
	if err != nil {
		return err
	}
	defer w.Close()

	a := &alarm{
		logger:   logger,
		pipeline: pipeline,
		tracker:  status.NewTracker(pipeline.Gate(), cfg.StarCountThreshold),
	}

	var wg sync.WaitGroup
	if cfg.StatusAddr != "" {
		srv := status.NewServer(logger, cfg.StatusAddr, a.tracker)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				logger.Error("Status server failed", zap.Error(err))
			}
		}()
	}

	err = w.Run(ctx, a.handleCapture)
	wg.Wait()
	logger.Info("Shutting down")
	return err
}

// buildPipeline wires the template, annotated-output sink and SMS transport
// from cfg. withSink controls whether writeDetectedFile is honoured.
func buildPipeline(logger *zap.Logger, cfg *config.File, withSink bool) (*clearsky.Pipeline, func(), error) {
	tmpl, err := clearsky.LoadTemplate(cfg.TemplatePath)
	if err != nil {
		return nil, nil, err
	}
	boxColor, err := clearsky.ParseBoxColor(cfg.BoxColor)
	if err != nil {
		tmpl.Close()
		return nil, nil, err
	}

	opts := clearsky.PipelineOptions{BoxColor: boxColor}
	if withSink && cfg.WriteDetectedFile {
		opts.Sink = clearsky.NewFileSink(cfg.DetectedPath, cfg.DetectedTag)
	}
	if cfg.NotifySMS {
		sender, err := sms.NewSender(logger, sms.Config{URL: cfg.SMSURL})
		if err != nil {
			tmpl.Close()
			return nil, nil, err
		}
		opts.Transport = sender
	}

	pipeline, err := clearsky.NewPipeline(logger, cfg.Detection(), tmpl, opts)
	if err != nil {
		tmpl.Close()
		return nil, nil, err
	}
	logger.Info("Template loaded",
		zap.String("path", cfg.TemplatePath),
		zap.Int("width", tmpl.Width),
		zap.Int("height", tmpl.Height),
	)
	return pipeline, tmpl.Close, nil
}

// handleCapture runs one detection. Failures are logged and the loop goes on.
func (a *alarm) handleCapture(ctx context.Context, path string) {
	a.logger.Info("New capture", zap.String("file", path))

	frame, err := clearsky.LoadFrame(path)
	if err != nil {
		a.logger.Error("Failed to load capture", zap.String("file", path), zap.Error(err))
		a.tracker.Record(path, nil, err)
		return
	}
	defer frame.Close()

	out, err := a.pipeline.Process(ctx, frame)
	a.tracker.Record(path, out, err)
	if err != nil {
		a.logger.Error("Detection run failed", zap.String("file", path), zap.Error(err))
	}
}
