package workshop

import (
	"context"
	"path/filepath"
	"time"

	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
)

// ProcessItemsUpload runs the upload pipeline for every path of one content
// type. An item failure is logged and recorded, and the loop moves on; the
// result is false when any item failed.
func ProcessItemsUpload(ctx context.Context, deps Deps, ct models.ContentType, paths []string, opts models.Options) bool {
	success, _ := uploadType(ctx, deps, ct, paths, opts)
	return success
}

// uploadType also reports how many items were attempted.
func uploadType(ctx context.Context, deps Deps, ct models.ContentType, paths []string, opts models.Options) (bool, int) {
	success := true
	attempted := 0
	tags := SplitTags(opts.Tags)

	for _, p := range paths {
		path, err := filepath.Abs(p)
		if err != nil {
			path = p
		}

		item := LoadLocalItem(deps.Store, ct, path)
		if opts.UpdateOnly && item.RemoteID == 0 {
			log.Infof("--update-only passed, skipping: %s", item.Title)
			continue
		}
		attempted++
		if len(tags) > 0 {
			item.Tags = tags
		}

		entry := log.WithFields(log.Fields{"type": ct.String(), "path": path})
		entry.Infof("Processing %s: %s", ct, item.Title)

		if opts.Compile {
			if err := deps.Engine.Compile(ctx, item, opts); err != nil {
				entry.WithError(err).Errorf("Skipping %s: %s", ct, item.Title)
				recordPublish(deps, item, opts, models.StatusError, err)
				success = false
				continue
			}
		}

		if !opts.Upload {
			entry.Infof("Not uploading: %s", item.Title)
			if err := deps.Engine.UpdatePreviewOrTags(ctx, item, opts); err != nil {
				entry.WithError(err).Warnf("Could not update preview or tags: %s", item.Title)
			}
			entry.Infof("Complete: %s", item.Title)
			continue
		}

		outcome, err := deps.Engine.Publish(ctx, item, opts)
		switch {
		case err != nil:
			entry.WithError(err).Errorf("Error occurred: %s", item.Title)
			recordPublish(deps, item, opts, models.StatusError, err)
			success = false
		case outcome.Unchanged && outcome.MetaUpdated:
			entry.WithField("id", item.RemoteID).Infof("Content unchanged, metadata updated: %s", item.Title)
			recordPublish(deps, item, opts, models.StatusSkipped, nil)
		case outcome.Unchanged:
			entry.Infof("Unchanged since last publish, skipping upload: %s", item.Title)
			recordPublish(deps, item, opts, models.StatusSkipped, nil)
		default:
			if outcome.RemoteID != 0 {
				item.RemoteID = outcome.RemoteID
			}
			item.Fingerprint = outcome.Fingerprint
			if outcome.DryRun {
				entry.Infof("Dry run, not published: %s", item.Title)
			} else {
				entry.WithField("id", item.RemoteID).Infof("Complete: %s", item.Title)
			}
			recordPublish(deps, item, opts, models.StatusPublished, nil)
		}
	}
	return success, attempted
}

// recordPublish writes the item's outcome to the audit store. Dry runs leave
// no record.
func recordPublish(deps Deps, item *models.WorkItem, opts models.Options, status string, cause error) {
	if deps.Store == nil || opts.DryRun {
		return
	}
	rec := models.PublishRecord{
		Path:        item.LocalPath,
		Type:        item.Type.String(),
		RemoteID:    item.RemoteID,
		Title:       item.Title,
		Tags:        item.Tags,
		Fingerprint: item.Fingerprint,
		Timestamp:   time.Now().Unix(),
		Status:      status,
	}
	if cause != nil {
		rec.ErrorDetails = cause.Error()
	}
	if err := deps.Store.PutPublishRecord(rec); err != nil {
		log.WithError(err).Warnf("Could not record publish outcome for %s", item.LocalPath)
	}
}
