// gaze-probe opens the camera and detector once and prints the raw and
// smoothed signal for each detection. Useful for tuning gains.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/camera/webcam"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/detection/yunet"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	detector := flag.String("detector", "", "Detector backend: yunet or sidecar")
	every := flag.Duration("every", 100*time.Millisecond, "Detection interval")
	count := flag.Int("n", 0, "Stop after n detections (0 runs until interrupted)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *detector != "" {
		cfg.Detector = *detector
	}
	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := probe(ctx, cfg, *every, *count); err != nil {
		fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		os.Exit(1)
	}
}

func probe(ctx context.Context, cfg config.Config, every time.Duration, count int) error {
	stream, err := webcam.New(cfg.Camera).Open(ctx, cfg.Camera.Constraints())
	if err != nil {
		return err
	}
	defer stream.Close()

	var loader detection.Loader = detection.NewSidecarLoader(cfg.Sidecar)
	if cfg.Detector == config.DetectorYuNet {
		loader = yunet.NewLoader(cfg.YuNet)
	}
	det, err := loader.Load(ctx, cfg.Detection)
	if err != nil {
		return err
	}
	defer det.Close()

	pipeline := gaze.NewPipeline(cfg.Gaze)
	start := time.Now()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	fmt.Printf("%8s %6s %6s %6s %6s | %6s %6s %6s %6s\n", "ms", "x", "y", "left", "right", "sx", "sy", "sleft", "sright")
	for n := 0; count == 0 || n < count; {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, ok := stream.Current()
		if !ok {
			continue
		}
		ts := time.Since(start).Milliseconds()
		res, err := det.Detect(ctx, frame, ts)
		if err != nil {
			return err
		}
		n++

		face, ok := res.Face()
		if !ok {
			fmt.Printf("%8d no face\n", ts)
			continue
		}
		raw, ok := pipeline.Raw(face)
		if !ok {
			fmt.Printf("%8d no nose\n", ts)
			continue
		}
		pipeline.Process(face)
		s := pipeline.State()
		fmt.Printf("%8d %6.1f %6.1f %6.1f %6.1f | %6.1f %6.1f %6.1f %6.1f\n",
			ts, raw.X, raw.Y, raw.Left, raw.Right, s.X, s.Y, s.Left, s.Right)
	}
	return nil
}
