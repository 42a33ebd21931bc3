package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go-workshop-sync/internal/helpers"
	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
)

var (
	ErrHashMismatch = errors.New("downloaded file hash mismatch")
	ErrHttpStatus   = errors.New("unexpected HTTP status code")
	ErrFileSystem   = errors.New("filesystem error") // Covers create, remove, rename
	ErrHttpRequest  = errors.New("HTTP request creation/execution error")
)

// Downloader fetches content payloads into the download cache.
type Downloader struct {
	client *http.Client
	apiKey string
}

// NewDownloader creates a Downloader. A nil client gets a generous timeout
// since payloads can be large.
func NewDownloader(client *http.Client, apiKey string) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Minute}
	}
	return &Downloader{client: client, apiKey: apiKey}
}

// DownloadFile fetches url into target and returns target. A cached file whose
// hash matches is reused without a request. The body is staged in a temporary
// file next to target, verified when hashes are given, and renamed into place.
func (d *Downloader) DownloadFile(ctx context.Context, target string, url string, hashes models.Hashes) (string, error) {
	if helpers.HasHashes(hashes) && helpers.CheckHash(target, hashes) {
		log.Infof("Found valid cached payload %s, skipping download", target)
		return target, nil
	}

	dir := filepath.Dir(target)
	if !helpers.CheckAndMakeDir(dir) {
		return "", fmt.Errorf("%w: failed to create target directory %s", ErrFileSystem, dir)
	}

	body, err := d.open(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	staged, written, err := stage(body, target)
	if err != nil {
		return "", err
	}
	keep := false
	defer func() {
		if keep {
			return
		}
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warnf("Failed to remove temporary file %s", staged)
		}
	}()

	if helpers.HasHashes(hashes) && !helpers.CheckHash(staged, hashes) {
		log.Errorf("Hash mismatch for downloaded payload %s", url)
		return "", ErrHashMismatch
	}

	if err := os.Rename(staged, target); err != nil {
		return "", fmt.Errorf("%w: renaming %s to %s: %v", ErrFileSystem, staged, target, err)
	}
	keep = true
	log.Infof("Downloaded %s (%s)", target, helpers.BytesToSize(written))
	return target, nil
}

// open issues the GET and returns the body of a 200 response.
func (d *Downloader) open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating download request for %s: %w", ErrHttpRequest, url, err)
	}
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: performing request for %s: %v", ErrHttpRequest, url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		log.Errorf("Error downloading payload: status %d from %s", resp.StatusCode, url)
		return nil, fmt.Errorf("%w: received status %d from %s", ErrHttpStatus, resp.StatusCode, url)
	}
	log.Debugf("Downloading %s (%s)", url, helpers.BytesToSize(uint64(max(resp.ContentLength, 0))))
	return resp.Body, nil
}

// stage copies r into a new temporary file beside target and returns its name
// and size. The file is removed again on failure.
func stage(r io.Reader, target string) (string, uint64, error) {
	f, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("%w: creating temporary file for %s: %w", ErrFileSystem, target, err)
	}
	counter := &helpers.CounterWriter{Writer: f}
	_, copyErr := io.Copy(counter, r)
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("%w: writing %s: %v", ErrFileSystem, f.Name(), copyErr)
	}
	return f.Name(), counter.Total, nil
}
