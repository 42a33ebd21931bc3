// Package workshop is the batch synchronization orchestrator. It resolves
// user inputs into per-type work lists, drives every item through the upload
// or download pipeline and folds the per-type results into one batch outcome.
package workshop

import (
	"context"
	"errors"

	"go-workshop-sync/internal/models"
)

var (
	// ErrUnsupportedType is returned when a download is requested for a
	// content type the active game cannot fetch.
	ErrUnsupportedType = errors.New("unsupported content type")
	// ErrNoInputs is returned when a batch has nothing to work on.
	ErrNoInputs = errors.New("no inputs specified")
)

// Service is the metadata side of the hosting service.
type Service interface {
	GetCollectionDetails(ctx context.Context, id uint64) ([]models.WorkshopItem, error)
	GetItems(ctx context.Context, ids []uint64) ([]models.WorkshopItem, error)
}

// Engine performs the per-item content actions.
type Engine interface {
	Compile(ctx context.Context, item *models.WorkItem, opts models.Options) error
	Publish(ctx context.Context, item *models.WorkItem, opts models.Options) (models.PublishOutcome, error)
	UpdatePreviewOrTags(ctx context.Context, item *models.WorkItem, opts models.Options) error
	DownloadMods(ctx context.Context, items []*models.WorkItem) error
	DownloadItem(ctx context.Context, item *models.WorkItem) error
	CreateInstance(ctx context.Context, item *models.WorkItem) (string, error)
	Extract(ctx context.Context, item *models.WorkItem, dir string) (string, error)
}

// Store is the audit log of per-item outcomes.
type Store interface {
	GetPublishRecord(path string) (models.PublishRecord, error)
	PutPublishRecord(rec models.PublishRecord) error
	PutDownloadRecord(rec models.DownloadRecord) error
}

// Indexer records downloaded items for later search.
type Indexer interface {
	IndexDownload(item *models.WorkItem, folder string) error
}

// Pump is the external event pump serviced on every poll tick.
type Pump interface {
	RunCallbacks() int
}

// Deps bundles the collaborators of one batch run. Store and Index are
// optional.
type Deps struct {
	Service Service
	Engine  Engine
	Profile models.GameProfile
	Store   Store
	Index   Indexer
}
