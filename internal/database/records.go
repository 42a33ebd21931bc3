package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
)

// Key prefixes for the two record kinds kept in the store.
const (
	PublishKeyPrefix  = "p_"
	DownloadKeyPrefix = "d_"
)

// PublishKey is the key of the publish record for a local directory.
func PublishKey(path string) []byte {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return []byte(PublishKeyPrefix + path)
}

// DownloadKey is the key of the download record for a remote item.
func DownloadKey(t models.ContentType, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%s_%d", DownloadKeyPrefix, strings.ToLower(t.String()), id))
}

// GetPublishRecord loads the last publish outcome for path. ErrNotFound is
// returned when the directory was never processed.
func (d *DB) GetPublishRecord(path string) (models.PublishRecord, error) {
	var rec models.PublishRecord
	err := d.getJSON(PublishKey(path), &rec)
	return rec, err
}

// PutPublishRecord stores rec under its Path.
func (d *DB) PutPublishRecord(rec models.PublishRecord) error {
	if rec.Path == "" {
		return errors.New("cannot store publish record: path is empty")
	}
	log.WithFields(log.Fields{"path": rec.Path, "status": rec.Status}).Debug("Storing publish record")
	return d.putJSON(PublishKey(rec.Path), rec)
}

// GetDownloadRecord loads the download record for one remote item.
func (d *DB) GetDownloadRecord(t models.ContentType, id uint64) (models.DownloadRecord, error) {
	var rec models.DownloadRecord
	err := d.getJSON(DownloadKey(t, id), &rec)
	return rec, err
}

// PutDownloadRecord stores rec keyed by its type and remote id.
func (d *DB) PutDownloadRecord(rec models.DownloadRecord) error {
	t, err := models.ParseContentType(rec.Type)
	if err != nil {
		return fmt.Errorf("cannot store download record %d: %w", rec.RemoteID, err)
	}
	if rec.RemoteID == 0 {
		return errors.New("cannot store download record: remote id is zero")
	}
	log.WithFields(log.Fields{"id": rec.RemoteID, "status": rec.Status}).Debug("Storing download record")
	return d.putJSON(DownloadKey(t, rec.RemoteID), rec)
}

// FoldPublishRecords calls fn for every stored publish record. Entries that
// fail to decode are logged and skipped.
func (d *DB) FoldPublishRecords(fn func(models.PublishRecord) error) error {
	return d.Scan([]byte(PublishKeyPrefix), func(key, value []byte) error {
		var rec models.PublishRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			log.WithError(err).Warnf("Skipping undecodable publish record %s", key)
			return nil
		}
		return fn(rec)
	})
}

// FoldDownloadRecords calls fn for every stored download record.
func (d *DB) FoldDownloadRecords(fn func(models.DownloadRecord) error) error {
	return d.Scan([]byte(DownloadKeyPrefix), func(key, value []byte) error {
		var rec models.DownloadRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			log.WithError(err).Warnf("Skipping undecodable download record %s", key)
			return nil
		}
		return fn(rec)
	})
}
