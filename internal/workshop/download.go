package workshop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
)

// ProcessItemsDownload runs the download pipeline for the ids of one content
// type. A type the game cannot download yields ErrUnsupportedType before any
// remote call. A failed metadata fetch means there is nothing to process and
// is not a failure. Per-item fetches succeed when at least one item does; the
// batched mod fetch succeeds when the whole call does.
func ProcessItemsDownload(ctx context.Context, deps Deps, ct models.ContentType, ids []string, opts models.Options) (bool, error) {
	success, _, err := downloadType(ctx, deps, ct, ids, opts)
	return success, err
}

func downloadType(ctx context.Context, deps Deps, ct models.ContentType, ids []string, opts models.Options) (bool, int, error) {
	if len(ids) == 0 {
		return true, 0, nil
	}
	spec := ct.Spec()
	if !ct.Valid() || !deps.Profile.SupportsDownload(ct) {
		return false, 0, fmt.Errorf("%w: downloading of %s not yet supported", ErrUnsupportedType, ct)
	}

	log.Infof("Processing %ss...", ct)

	remoteIDs := make([]uint64, 0, len(ids))
	for _, raw := range ids {
		id, err := parseID(raw)
		if err != nil || id == 0 {
			log.Warnf("Invalid %s id %q, skipping", ct, raw)
			continue
		}
		remoteIDs = append(remoteIDs, id)
	}
	if len(remoteIDs) == 0 {
		return true, 0, nil
	}

	fetched, err := deps.Service.GetItems(ctx, remoteIDs)
	if err != nil {
		log.WithError(err).Warnf("Could not fetch %s details, nothing to process", ct)
		return true, 0, nil
	}
	reportMissing(ct, remoteIDs, fetched)
	if len(fetched) == 0 {
		log.Infof("No %ss found", ct)
		return true, 0, nil
	}

	items := make([]*models.WorkItem, len(fetched))
	for i, remote := range fetched {
		items[i] = models.NewRemoteItem(ct, remote)
	}

	ok := make([]bool, len(items))
	folders := make([]string, len(items))
	failures := make([]error, len(items))
	success := false

	switch spec.Fetch {
	case models.FetchBatched:
		err := deps.Engine.DownloadMods(ctx, items)
		success = err == nil
		for i := range items {
			ok[i] = success
			failures[i] = err
		}
		if err != nil {
			log.WithError(err).Errorf("Batched %s download failed", ct)
		}
	case models.FetchPerItem:
		for i, item := range items {
			if err := deps.Engine.DownloadItem(ctx, item); err != nil {
				log.WithError(err).Errorf("Download of %d FAILED!", item.RemoteID)
				failures[i] = err
				continue
			}
			ok[i] = true
			success = true
		}
	case models.FetchInstantiate:
		for i, item := range items {
			path, err := deps.Engine.CreateInstance(ctx, item)
			if err != nil {
				log.WithError(err).Errorf("Download of %d FAILED!", item.RemoteID)
				failures[i] = err
				continue
			}
			log.Infof("Downloaded '%s' to %s", item.Title, path)
			folders[i] = path
			ok[i] = true
			success = true
		}
	default:
		return false, 0, fmt.Errorf("%w: downloading of %s not yet supported", ErrUnsupportedType, ct)
	}

	if !success {
		log.Error("Download FAILED!")
		for i, item := range items {
			recordDownload(deps, item, "", models.StatusError, failures[i])
		}
		return false, len(items), nil
	}
	log.Info("Download success!")

	for i, item := range items {
		log.Infof("%d '%s' tags: %s", item.RemoteID, item.Title, strings.Join(item.Tags, ", "))
		if !ok[i] {
			recordDownload(deps, item, "", models.StatusError, failures[i])
			continue
		}
		if opts.Extract {
			if spec.Extractable {
				dest, err := deps.Engine.Extract(ctx, item, deps.Profile.ItemPath(ct))
				if err != nil {
					log.WithError(err).Errorf("Extraction of %d failed", item.RemoteID)
				} else {
					log.Infof("Extracted '%s' to %s", item.Title, dest)
					folders[i] = dest
				}
			} else {
				log.Debugf("%s items are extracted on fetch, nothing to extract for %d", ct, item.RemoteID)
			}
		}
		recordDownload(deps, item, folders[i], models.StatusDownloaded, nil)
		if deps.Index != nil {
			if err := deps.Index.IndexDownload(item, folders[i]); err != nil {
				log.WithError(err).Warnf("Could not index %d", item.RemoteID)
			}
		}
	}
	return true, len(items), nil
}

func reportMissing(ct models.ContentType, requested []uint64, fetched []models.WorkshopItem) {
	found := make(map[uint64]bool, len(fetched))
	for _, f := range fetched {
		found[f.ID] = true
	}
	for _, id := range requested {
		if !found[id] {
			log.Warnf("%s %d not found on the service", ct, id)
		}
	}
}

func recordDownload(deps Deps, item *models.WorkItem, folder, status string, cause error) {
	if deps.Store == nil {
		return
	}
	rec := models.DownloadRecord{
		RemoteID:  item.RemoteID,
		Type:      item.Type.String(),
		Title:     item.Title,
		Tags:      item.Tags,
		Folder:    folder,
		Timestamp: time.Now().Unix(),
		Status:    status,
	}
	if cause != nil {
		rec.ErrorDetails = cause.Error()
	}
	if err := deps.Store.PutDownloadRecord(rec); err != nil {
		log.WithError(err).Warnf("Could not record download of %d", item.RemoteID)
	}
}
