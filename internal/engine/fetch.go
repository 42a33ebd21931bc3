package engine

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go-workshop-sync/internal/helpers"
	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
)

type fetchJob struct {
	index int
	item  *models.WorkItem
}

// DownloadMods fetches the payloads of all items with a pool of workers. It
// succeeds only when every item was fetched.
func (e *Engine) DownloadMods(ctx context.Context, items []*models.WorkItem) error {
	numWorkers := e.Concurrency
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if numWorkers > len(items) {
		numWorkers = len(items)
	}

	errs := make([]error, len(items))
	jobs := make(chan fetchJob, len(items))
	var wg sync.WaitGroup

	for w := 1; w <= numWorkers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			log.Debugf("Fetch worker %d starting", id)
			for job := range jobs {
				if err := e.DownloadItem(ctx, job.item); err != nil {
					log.WithError(err).Warnf("Worker %d: fetch of %d failed", id, job.item.RemoteID)
					errs[job.index] = fmt.Errorf("%d: %w", job.item.RemoteID, err)
				}
			}
			log.Debugf("Fetch worker %d finished", id)
		}(w)
	}

	for i, item := range items {
		jobs <- fetchJob{index: i, item: item}
	}
	close(jobs)
	wg.Wait()

	return errors.Join(errs...)
}

// DownloadItem fetches one item's payload into the download cache. A cached
// payload whose hash still matches is reused.
func (e *Engine) DownloadItem(ctx context.Context, item *models.WorkItem) error {
	if item.Remote == nil || item.Remote.FileURL == "" {
		return fmt.Errorf("%w: %d", ErrNoPayload, item.RemoteID)
	}
	if e.Fetcher == nil {
		return fmt.Errorf("no fetcher configured for %d", item.RemoteID)
	}
	url := item.Remote.FileURL
	if e.Remote != nil {
		url = e.Remote.ResolveURL(url)
	}

	path, err := e.Fetcher.DownloadFile(ctx, e.downloadCachePath(item), url, item.Remote.Hashes)
	if err != nil {
		return err
	}
	item.PayloadPath = path
	log.Debugf("Fetched %d to %s", item.RemoteID, path)
	return nil
}

// CreateInstance fetches a world or scenario and unpacks it into the type's
// default directory, returning the new instance's location.
func (e *Engine) CreateInstance(ctx context.Context, item *models.WorkItem) (string, error) {
	if err := e.DownloadItem(ctx, item); err != nil {
		return "", err
	}
	return e.Extract(ctx, item, e.Profile.ItemPath(item.Type))
}

// InstanceDirName is the directory name a downloaded item is unpacked to.
func InstanceDirName(item *models.WorkItem) string {
	name := models.DownloadPrefix + item.IDString()
	if slug := helpers.ConvertToSlug(item.Title); slug != "" && slug != item.IDString() {
		name += "_" + slug
	}
	return name
}

// Extract unpacks a fetched payload into a fresh directory under dir and
// returns it. An earlier extraction of the same item is replaced.
func (e *Engine) Extract(ctx context.Context, item *models.WorkItem, dir string) (string, error) {
	if item.PayloadPath == "" {
		return "", fmt.Errorf("%w: %d was not fetched", ErrNoPayload, item.RemoteID)
	}
	dest := filepath.Join(dir, InstanceDirName(item))
	staging := dest + ".tmp"
	if err := os.RemoveAll(staging); err != nil {
		return "", err
	}
	if err := unzip(ctx, item.PayloadPath, staging); err != nil {
		if removeErr := os.RemoveAll(staging); removeErr != nil {
			log.WithError(removeErr).Warnf("Failed to remove %s", staging)
		}
		return "", fmt.Errorf("extracting %d: %w", item.RemoteID, err)
	}
	if err := os.RemoveAll(dest); err != nil {
		return "", err
	}
	if err := os.Rename(staging, dest); err != nil {
		return "", fmt.Errorf("moving %d into place: %w", item.RemoteID, err)
	}
	return dest, nil
}

func unzip(ctx context.Context, archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if errors.Is(err, zip.ErrInsecurePath) {
		if zr != nil {
			zr.Close()
		}
		return fmt.Errorf("%w: %w", ErrUnsafePath, err)
	}
	if err != nil {
		return err
	}
	defer zr.Close()

	root := filepath.Clean(dest)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := writeEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
