// gaze drives an eye rig from a webcam (face tracking) or from pointer
// events sent by a browser (cursor tracking), behind a small control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/camera/webcam"
	"github.com/teslashibe/go-gaze/pkg/cursor"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/detection/yunet"
	"github.com/teslashibe/go-gaze/pkg/rig"
	"github.com/teslashibe/go-gaze/pkg/tracking"
	"github.com/teslashibe/go-gaze/pkg/web"
)

func main() {
	envFile := flag.String("env-file", ".env", "Optional dotenv file with GAZE_* settings")
	configPath := flag.String("config", "", "YAML config file (default $GAZE_CONFIG)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	detector := flag.String("detector", "", "Detector backend: yunet or sidecar (overrides config)")
	rigName := flag.String("rig", "log", "Rig output: log or none")
	statsEvery := flag.Duration("stats", 10*time.Second, "Session stats log interval (0 disables)")
	flag.Parse()

	// Real environment wins over the file.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "env file: %v\n", err)
		os.Exit(1)
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("GAZE_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *detector != "" {
		cfg.Detector = *detector
		if problems := cfg.Validate(); len(problems) > 0 {
			fmt.Fprintf(os.Stderr, "config: %v\n", problems)
			os.Exit(1)
		}
	}
	log.InitWithFile(cfg.LogLevel, cfg.LogFile)

	r, err := newRig(*rigName)
	if err != nil {
		log.Error("bad rig", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, r, *statsEvery); err != nil {
		log.Error("exited", "error", err)
		os.Exit(1)
	}
}

func newRig(name string) (rig.Rig, error) {
	switch name {
	case "log":
		return rig.Logger{L: log.Component("rig")}, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown rig %q", name)
	}
}

func newLoader(cfg config.Config) detection.Loader {
	if cfg.Detector == config.DetectorYuNet {
		return yunet.NewLoader(cfg.YuNet)
	}
	return detection.NewSidecarLoader(cfg.Sidecar)
}

func run(ctx context.Context, cfg config.Config, r rig.Rig, statsEvery time.Duration) error {
	binding := rig.NewBinding(r)

	manager := tracking.NewManager(cfg.TrackingConfig(), webcam.New(cfg.Camera), newLoader(cfg),
		tracking.WithRig(binding))
	server := web.NewServer(cfg.Web, manager, cursor.New(binding))

	log.Info("starting",
		"detector", cfg.Detector,
		"mode", cfg.Web.StartMode,
		"camera", fmt.Sprintf("%dx%d", cfg.Camera.Width, cfg.Camera.Height),
		"min_interval", cfg.Tracking.MinInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(ctx)
	})
	if statsEvery > 0 {
		g.Go(func() error {
			reportStats(ctx, manager, statsEvery)
			return nil
		})
	}
	return g.Wait()
}

// reportStats logs the live session's counters until ctx is done.
func reportStats(ctx context.Context, m *tracking.Manager, every time.Duration) {
	logger := log.Component("stats")
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := m.Status()
			if !st.Active {
				continue
			}
			attrs := []any{
				"session", st.SessionID,
				"cycles", st.Stats.Cycles,
				"detections", st.Stats.Detections,
				"faces", st.Stats.Faces,
				"errors", st.Stats.Errors,
			}
			if st.Smoothed != nil {
				attrs = append(attrs, "x", st.Smoothed.X, "y", st.Smoothed.Y,
					"left", st.Smoothed.Left, "right", st.Smoothed.Right)
			}
			logger.Info("session", attrs...)
		}
	}
}
