package workshop

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go-workshop-sync/internal/database"
	"go-workshop-sync/internal/models"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

type itemManifest struct {
	ID          uint64   `toml:"id"`
	Title       string   `toml:"title"`
	Description string   `toml:"description"`
	Tags        []string `toml:"tags"`
}

// LoadLocalItem builds the upload handle for dir. Title, description and tags
// come from the directory's manifest when present. The remote id comes from
// the last publish recorded in store, else from the manifest.
func LoadLocalItem(store Store, ct models.ContentType, dir string) *models.WorkItem {
	item := models.NewLocalItem(ct, dir)

	manifestPath := filepath.Join(dir, models.ManifestFile)
	var manifest itemManifest
	if _, err := toml.DecodeFile(manifestPath, &manifest); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warnf("Ignoring unreadable %s", manifestPath)
		}
	} else {
		if t := strings.TrimSpace(manifest.Title); t != "" {
			item.Title = t
		}
		item.Description = manifest.Description
		item.Tags = manifest.Tags
		item.RemoteID = manifest.ID
	}

	if store == nil {
		return item
	}
	rec, err := store.GetPublishRecord(dir)
	switch {
	case errors.Is(err, database.ErrNotFound):
	case err != nil:
		log.WithError(err).Warnf("Could not read publish record for %s", dir)
	default:
		if rec.RemoteID != 0 {
			item.RemoteID = rec.RemoteID
		}
		if rec.Status == models.StatusPublished || rec.Status == models.StatusSkipped {
			item.Fingerprint = rec.Fingerprint
			item.LastPublish = &rec
		}
	}
	return item
}

// SplitTags splits a single combined tag argument on ',' and ';'. Multiple
// arguments are kept as given. Entries are trimmed and empty ones dropped.
func SplitTags(tags []string) []string {
	if len(tags) == 1 {
		tags = strings.FieldsFunc(tags[0], func(r rune) bool { return r == ',' || r == ';' })
	}
	var out []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
