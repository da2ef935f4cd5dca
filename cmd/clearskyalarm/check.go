package main

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clearskyalarm/internal/config"
	"clearskyalarm/pkg/clearsky"
)

var checkAnnotate bool

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check IMAGE...",
		Short: "Count the stars in captures without sending alerts",
		Long: `Run star detection on the given captures and print the count for each.
No SMS is sent and the notification gate is not touched.

Examples:
  # Tune detectionThreshold against last night's frames
  clearskyalarm check -c clearskyalarmconfig.json /data/allsky/20240314/*.jpg

  # Also write annotated copies to detectedPath
  clearskyalarm check --annotate image-001.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(debug || cfg.Debug)
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			defer logger.Sync()
			return runCheck(cmd.Context(), cmd.OutOrStdout(), logger, cfg, args)
		},
	}
	cmd.Flags().BoolVar(&checkAnnotate, "annotate", false, "Write annotated copies to detectedPath")
	return cmd
}

func runCheck(ctx context.Context, out io.Writer, logger *zap.Logger, cfg *config.File, paths []string) error {
	// Alerts are never sent from check.
	cfg.NotifySMS = false
	boxColor, err := clearsky.ParseBoxColor(cfg.BoxColor)
	if err != nil {
		return err
	}
	pipeline, closeTemplate, err := buildPipeline(logger, cfg, false)
	if err != nil {
		return err
	}
	defer closeTemplate()

	var sink *clearsky.FileSink
	if checkAnnotate && cfg.DetectedPath != "" {
		sink = clearsky.NewFileSink(cfg.DetectedPath, cfg.DetectedTag)
	}

	var failed []error
	for _, path := range paths {
		if err := checkOne(ctx, out, pipeline, sink, boxColor, cfg.StarCountThreshold, path); err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d captures failed: %w", len(failed), len(paths), errors.Join(failed...))
	}
	return nil
}

func checkOne(ctx context.Context, out io.Writer, pipeline *clearsky.Pipeline, sink *clearsky.FileSink, boxColor color.NRGBA, threshold int, path string) error {
	start := time.Now()
	frame, err := clearsky.LoadFrame(path)
	if err != nil {
		return err
	}
	defer frame.Close()

	detections, scores, err := pipeline.Detect(frame)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	peak, _ := scores.Max()

	verdict := "no"
	if len(detections) > threshold {
		verdict = "yes"
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "=== %s (%.1fs) ===\n", path, elapsed.Seconds())
	fmt.Fprintf(out, "  Image size:      %d x %d\n", frame.Gray.Cols(), frame.Gray.Rows())
	if frame.Exposure > 0 {
		fmt.Fprintf(out, "  Exposure:        %s\n", frame.Exposure)
	}
	fmt.Fprintf(out, "  Stars detected:  %d\n", len(detections))
	fmt.Fprintf(out, "  Peak score:      %.3f\n", peak)
	fmt.Fprintf(out, "  Clear sky:       %s (threshold %d)\n", verdict, threshold)

	if sink != nil && frame.Source != nil {
		annotated := clearsky.Annotate(frame.Source, detections, boxColor)
		if err := sink.WriteAnnotated(ctx, path, annotated); err != nil {
			fmt.Fprintf(out, "  Annotated:       failed: %v\n", err)
		} else {
			fmt.Fprintf(out, "  Annotated:       %s\n", sink.Path(path))
		}
	}
	fmt.Fprintln(out, "==============================")
	return nil
}
