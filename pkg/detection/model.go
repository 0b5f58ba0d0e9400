package detection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/teslashibe/go-gaze/internal/httpc"
	"github.com/teslashibe/go-gaze/internal/log"
)

// EnsureModel makes sure opts.ModelPath exists, downloading it from
// opts.ModelURL if needed. Errors wrap ErrModelLoad unless ctx ended.
func EnsureModel(ctx context.Context, client *http.Client, opts Options) error {
	_, err := os.Stat(opts.ModelPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) || opts.ModelURL == "" {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	logger := log.Component("detection")
	logger.Info("downloading model", "url", opts.ModelURL, "path", opts.ModelPath)

	if err := download(ctx, client, opts.ModelURL, opts.ModelPath); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: download %s: %v", ErrModelLoad, opts.ModelURL, err)
	}
	return nil
}

// download writes url to path via a temp file so a partial download
// never looks like a model.
func download(ctx context.Context, client *http.Client, url, path string) error {
	resp, err := httpc.Get(ctx, client, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
