package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
)

// Publish packs an item and creates or updates it on the service. An item
// that was published before and whose fingerprint is unchanged is not sent
// unless opts.Force is set; only changed or requested metadata goes out then.
// A dry run packs and fingerprints but sends nothing.
func (e *Engine) Publish(ctx context.Context, item *models.WorkItem, opts models.Options) (models.PublishOutcome, error) {
	pkg, err := e.Package(item, opts.ExcludeExtensions)
	if err != nil {
		return models.PublishOutcome{}, err
	}
	outcome := models.PublishOutcome{RemoteID: item.RemoteID, Fingerprint: pkg.Fingerprint}

	if item.RemoteID != 0 && !opts.Force && item.Fingerprint == pkg.Fingerprint {
		removePackage(pkg.Path)
		outcome.Unchanged = true
		if !metadataChanged(item, opts) {
			return outcome, nil
		}
		if opts.DryRun {
			log.Infof("Dry run: not updating metadata of %d", item.RemoteID)
			return outcome, nil
		}
		if err := e.updateMetadata(ctx, item, opts); err != nil {
			return outcome, err
		}
		outcome.MetaUpdated = true
		return outcome, nil
	}
	if opts.DryRun {
		log.Infof("Dry run: %s packed to %s (%d files)", item.Title, pkg.Path, pkg.Files)
		outcome.DryRun = true
		return outcome, nil
	}
	if e.Remote == nil {
		return outcome, fmt.Errorf("no service configured to publish %s", item.Title)
	}

	thumbnail, err := resolveThumbnail(item, opts.Thumbnail)
	if err != nil {
		return outcome, err
	}

	// Existing items keep their visibility unless one is asked for.
	visibility := opts.Visibility
	if visibility == "" && item.RemoteID == 0 {
		visibility = e.DefaultVisibility
	}
	req := models.PublishRequest{
		ID: item.RemoteID,
		Metadata: models.PublishMetadata{
			Type:        item.Type.String(),
			Title:       item.Title,
			Description: item.Description,
			Tags:        withTypeTag(item.Type, item.Tags),
			Visibility:  string(visibility),
			Development: opts.Development,
			Fingerprint: pkg.Fingerprint,
		},
		Payload:   pkg.Path,
		Thumbnail: thumbnail,
	}

	id, err := e.Remote.PublishItem(ctx, req)
	removePackage(pkg.Path)
	if err != nil {
		return outcome, fmt.Errorf("publishing %s: %w", item.Title, err)
	}
	outcome.RemoteID = id
	return outcome, nil
}

// metadataChanged reports whether an item with unchanged content still has
// something to send: explicitly given tags, thumbnail or visibility, or a
// title or tag list that differs from the last publish.
func metadataChanged(item *models.WorkItem, opts models.Options) bool {
	if len(opts.Tags) > 0 || opts.Thumbnail != "" || opts.Visibility != "" {
		return true
	}
	last := item.LastPublish
	if last == nil {
		return false
	}
	if last.Title != "" && last.Title != item.Title {
		return true
	}
	return len(item.Tags) > 0 && !slices.Equal(item.Tags, last.Tags)
}

// updateMetadata sends title, tags, requested visibility and thumbnail of a
// published item without its content.
func (e *Engine) updateMetadata(ctx context.Context, item *models.WorkItem, opts models.Options) error {
	if e.Remote == nil {
		return fmt.Errorf("no service configured to update %d", item.RemoteID)
	}
	thumbnail, err := resolveThumbnail(item, opts.Thumbnail)
	if err != nil {
		return err
	}
	update := models.MetadataUpdate{Title: item.Title, Visibility: string(opts.Visibility)}
	if len(item.Tags) > 0 {
		update.Tags = withTypeTag(item.Type, item.Tags)
	}
	log.WithField("id", item.RemoteID).Debugf("Updating metadata of %s", item.Title)
	if err := e.Remote.UpdateItemMetadata(ctx, item.RemoteID, update, thumbnail); err != nil {
		return fmt.Errorf("updating %d: %w", item.RemoteID, err)
	}
	return nil
}

// UpdatePreviewOrTags refreshes the tags and preview image of an item that is
// already published, without sending its content.
func (e *Engine) UpdatePreviewOrTags(ctx context.Context, item *models.WorkItem, opts models.Options) error {
	if item.RemoteID == 0 {
		log.Debugf("%s is not published yet, no metadata to update", item.Title)
		return nil
	}
	if len(item.Tags) == 0 && opts.Thumbnail == "" {
		return nil
	}
	if opts.DryRun {
		log.Infof("Dry run: not updating tags or preview of %d", item.RemoteID)
		return nil
	}
	if e.Remote == nil {
		return fmt.Errorf("no service configured to update %d", item.RemoteID)
	}

	thumbnail, err := resolveThumbnail(item, opts.Thumbnail)
	if err != nil {
		return err
	}
	var tags []string
	if len(item.Tags) > 0 {
		tags = withTypeTag(item.Type, item.Tags)
	}
	if err := e.Remote.UpdateItemMetadata(ctx, item.RemoteID, models.MetadataUpdate{Tags: tags}, thumbnail); err != nil {
		return fmt.Errorf("updating %d: %w", item.RemoteID, err)
	}
	return nil
}

// resolveThumbnail returns the preview image path. A relative value is looked
// up in the item directory first, then in the working directory.
func resolveThumbnail(item *models.WorkItem, thumbnail string) (string, error) {
	if thumbnail == "" {
		return "", nil
	}
	if !filepath.IsAbs(thumbnail) && item.LocalPath != "" {
		if local := filepath.Join(item.LocalPath, thumbnail); fileExists(local) {
			thumbnail = local
		}
	}
	info, err := os.Stat(thumbnail)
	if err != nil {
		return "", fmt.Errorf("thumbnail for %s: %w", item.Title, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("thumbnail for %s is a directory: %s", item.Title, thumbnail)
	}
	return thumbnail, nil
}

// withTypeTag returns tags with the content type name first, so collections
// containing the item can be split by type.
func withTypeTag(t models.ContentType, tags []string) []string {
	out := []string{t.String()}
	for _, tag := range tags {
		if !strings.EqualFold(tag, t.String()) {
			out = append(out, tag)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func removePackage(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warnf("Failed to remove package %s", path)
	}
}
