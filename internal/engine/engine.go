// Package engine is the local content engine. It validates and packs item
// directories for publishing, and fetches, caches and unpacks downloaded
// payloads.
package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"go-workshop-sync/internal/models"
)

var (
	ErrCompile      = errors.New("content validation failed")
	ErrEmptyContent = errors.New("no content to package")
	ErrNoPayload    = errors.New("item has no downloadable payload")
	ErrUnsafePath   = errors.New("archive entry escapes destination")
)

// Remote is the publishing side of the hosting service.
type Remote interface {
	PublishItem(ctx context.Context, req models.PublishRequest) (uint64, error)
	UpdateItemMetadata(ctx context.Context, id uint64, update models.MetadataUpdate, thumbnail string) error
	ResolveURL(ref string) string
}

// Fetcher retrieves a payload to a local file, verifying it against hashes.
type Fetcher interface {
	DownloadFile(ctx context.Context, targetFilepath string, url string, hashes models.Hashes) (string, error)
}

// Engine implements the per-item content actions for one game.
type Engine struct {
	Remote            Remote
	Fetcher           Fetcher
	Profile           models.GameProfile
	CachePath         string
	DefaultVisibility models.Visibility
	Concurrency       int // Parallel payload fetches in DownloadMods
}

// New returns an Engine with default visibility Public and four fetch workers.
func New(remote Remote, fetcher Fetcher, profile models.GameProfile, cachePath string) *Engine {
	return &Engine{
		Remote:            remote,
		Fetcher:           fetcher,
		Profile:           profile,
		CachePath:         cachePath,
		DefaultVisibility: models.VisibilityPublic,
		Concurrency:       4,
	}
}

func (e *Engine) uploadCacheDir(t models.ContentType) string {
	return filepath.Join(e.CachePath, "upload", strings.ToLower(t.String()))
}

func (e *Engine) downloadCachePath(item *models.WorkItem) string {
	return filepath.Join(e.CachePath, strings.ToLower(item.Type.String()), item.IDString()+".zip")
}

// excluded reports whether name carries one of the excluded extensions. The
// list entries may be given with or without the leading dot.
func excluded(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, x := range exts {
		x = strings.ToLower(strings.TrimSpace(x))
		if x == "" {
			continue
		}
		if !strings.HasPrefix(x, ".") {
			x = "." + x
		}
		if x == ext {
			return true
		}
	}
	return false
}
