package workshop

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go-workshop-sync/internal/database"
	"go-workshop-sync/internal/models"

	"github.com/stretchr/testify/require"
)

var errFake = errors.New("fake failure")

type fakeService struct {
	collections map[uint64][]models.WorkshopItem
	items       map[uint64]models.WorkshopItem
	itemsErr    error
	calls       int
}

func (f *fakeService) GetCollectionDetails(ctx context.Context, id uint64) ([]models.WorkshopItem, error) {
	f.calls++
	members, ok := f.collections[id]
	if !ok {
		return nil, errFake
	}
	return members, nil
}

func (f *fakeService) GetItems(ctx context.Context, ids []uint64) ([]models.WorkshopItem, error) {
	f.calls++
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	var out []models.WorkshopItem
	for _, id := range ids {
		if it, ok := f.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// fakeEngine records every call. Items whose remote id or base name is listed
// in fail make the corresponding call fail.
type fakeEngine struct {
	mu        sync.Mutex
	fail      map[string]bool
	compiled  []string
	published []string
	updated   []string
	fetched   []uint64
	extracted []uint64
	unchanged bool
	nextID    uint64
	modsErr   error
	panicOn   string
}

func (f *fakeEngine) failing(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[key]
}

func (f *fakeEngine) Compile(ctx context.Context, item *models.WorkItem, opts models.Options) error {
	f.mu.Lock()
	f.compiled = append(f.compiled, item.Title)
	f.mu.Unlock()
	if f.failing("compile:" + item.Title) {
		return errFake
	}
	return nil
}

func (f *fakeEngine) Publish(ctx context.Context, item *models.WorkItem, opts models.Options) (models.PublishOutcome, error) {
	if f.panicOn == item.Title {
		panic("engine exploded")
	}
	if f.failing("publish:" + item.Title) {
		return models.PublishOutcome{}, errFake
	}
	if f.unchanged && !opts.Force {
		return models.PublishOutcome{RemoteID: item.RemoteID, Unchanged: true, MetaUpdated: len(opts.Tags) > 0, Fingerprint: item.Fingerprint}, nil
	}
	f.mu.Lock()
	f.published = append(f.published, item.Title)
	f.mu.Unlock()
	id := item.RemoteID
	if id == 0 {
		f.nextID++
		id = 1000 + f.nextID
	}
	return models.PublishOutcome{RemoteID: id, Fingerprint: "FP-" + item.Title, DryRun: opts.DryRun}, nil
}

func (f *fakeEngine) UpdatePreviewOrTags(ctx context.Context, item *models.WorkItem, opts models.Options) error {
	f.mu.Lock()
	f.updated = append(f.updated, item.Title)
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) DownloadMods(ctx context.Context, items []*models.WorkItem) error {
	for _, it := range items {
		f.fetched = append(f.fetched, it.RemoteID)
	}
	return f.modsErr
}

func (f *fakeEngine) DownloadItem(ctx context.Context, item *models.WorkItem) error {
	f.fetched = append(f.fetched, item.RemoteID)
	if f.failing("fetch:" + item.IDString()) {
		return errFake
	}
	return nil
}

func (f *fakeEngine) CreateInstance(ctx context.Context, item *models.WorkItem) (string, error) {
	if err := f.DownloadItem(ctx, item); err != nil {
		return "", err
	}
	return filepath.Join("instances", item.IDString()), nil
}

func (f *fakeEngine) Extract(ctx context.Context, item *models.WorkItem, dir string) (string, error) {
	f.extracted = append(f.extracted, item.RemoteID)
	return filepath.Join(dir, models.DownloadPrefix+item.IDString()), nil
}

// memStore is an in-memory Store.
type memStore struct {
	publish   map[string]models.PublishRecord
	downloads []models.DownloadRecord
}

func newMemStore() *memStore {
	return &memStore{publish: make(map[string]models.PublishRecord)}
}

func (m *memStore) GetPublishRecord(path string) (models.PublishRecord, error) {
	rec, ok := m.publish[path]
	if !ok {
		return rec, database.ErrNotFound
	}
	return rec, nil
}

func (m *memStore) PutPublishRecord(rec models.PublishRecord) error {
	m.publish[rec.Path] = rec
	return nil
}

func (m *memStore) PutDownloadRecord(rec models.DownloadRecord) error {
	m.downloads = append(m.downloads, rec)
	return nil
}

type fakeIndex struct {
	indexed []uint64
}

func (f *fakeIndex) IndexDownload(item *models.WorkItem, folder string) error {
	f.indexed = append(f.indexed, item.RemoteID)
	return nil
}

// testProfile returns a SpaceEngineers profile rooted in a temp directory.
func testProfile(t *testing.T) models.GameProfile {
	t.Helper()
	p, err := models.LookupGameProfile("SpaceEngineers")
	require.NoError(t, err)
	p.DataPath = t.TempDir()
	return p
}

func mkdirs(t *testing.T, base string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(base, n), 0755))
	}
}

// chdir switches the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
