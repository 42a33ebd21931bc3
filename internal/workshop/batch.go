package workshop

import (
	"context"

	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
)

// UploadBatch resolves and uploads every requested type in the fixed order
// Mod, Blueprint, IngameScript, World, Scenario. The result is true only when
// every type succeeded. A run whose inputs resolve to nothing at all fails.
func UploadBatch(ctx context.Context, deps Deps, req models.BatchRequest) bool {
	log.Info("Beginning batch workshop upload...")

	success := true
	attempted := 0
	for _, ct := range models.AllContentTypes {
		fragments := req.Get(ct)
		if len(fragments) == 0 {
			continue
		}
		if !deps.Profile.SupportsUpload(ct) {
			log.Warnf("%s content is not supported by %s, skipping", ct, deps.Profile.Name)
			continue
		}
		paths := ResolvePaths(ct.Spec(), deps.Profile, fragments)
		ok, n := uploadType(ctx, deps, ct, paths, req.Options)
		if !ok {
			success = false
		}
		attempted += n
	}

	if attempted == 0 && !req.Options.UpdateOnly {
		log.Warn("Nothing to upload")
		success = false
	}
	log.Info("Batch workshop upload complete!")
	return success
}

// DownloadBatch expands collections, then downloads every requested type in
// the fixed order. An unsupported type or a collection that cannot be fetched
// aborts the batch with an error.
func DownloadBatch(ctx context.Context, deps Deps, req models.BatchRequest) (bool, error) {
	log.Info("Beginning batch workshop download...")

	req, err := ExpandCollections(ctx, deps.Service, deps.Profile, req)
	if err != nil {
		return false, err
	}

	success := true
	attempted := 0
	for _, ct := range models.AllContentTypes {
		ok, n, err := downloadType(ctx, deps, ct, req.Get(ct), req.Options)
		if err != nil {
			return false, err
		}
		if !ok {
			success = false
		}
		attempted += n
	}

	if attempted == 0 {
		log.Warn("Nothing to download")
		success = false
	}
	log.Info("Batch workshop download complete!")
	return success, nil
}
