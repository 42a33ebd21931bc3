package models

import (
	"path/filepath"
	"strconv"
)

// ManifestFile is the optional per-directory metadata file. Its keys are id,
// title, description and tags.
const ManifestFile = "workshop.toml"

// WorkItem is the handle for one content item while it moves through a
// pipeline. It is built fresh per path or per remote id and never reused.
type WorkItem struct {
	Type        ContentType
	LocalPath   string // Upload source directory
	RemoteID    uint64 // Zero until known
	Title       string
	Description string
	Tags        []string
	Fingerprint string // Content fingerprint recorded at the last publish

	// LastPublish is the recorded outcome the fingerprint came from, if any.
	LastPublish *PublishRecord

	// Remote is the fetched metadata, set in the download direction.
	Remote      *WorkshopItem
	PayloadPath string // Fetched archive in the download cache
}

// PublishOutcome is what the engine reports back from a publish attempt.
type PublishOutcome struct {
	RemoteID    uint64
	Fingerprint string
	Unchanged   bool // Content matches the last publish and was not sent
	MetaUpdated bool // Content unchanged, but title, tags, visibility or thumbnail were sent
	DryRun      bool // Prepared but not transmitted
}

// NewLocalItem builds an upload handle for a directory. The title defaults to
// the directory's base name.
func NewLocalItem(t ContentType, path string) *WorkItem {
	return &WorkItem{
		Type:      t,
		LocalPath: path,
		Title:     filepath.Base(path),
	}
}

// NewRemoteItem builds a download handle from fetched metadata.
func NewRemoteItem(t ContentType, remote WorkshopItem) *WorkItem {
	title := remote.Title
	if title == "" {
		title = strconv.FormatUint(remote.ID, 10)
	}
	r := remote
	return &WorkItem{
		Type:     t,
		RemoteID: remote.ID,
		Title:    title,
		Tags:     remote.Tags,
		Remote:   &r,
	}
}

// IDString returns the remote id in decimal, or "" when not known.
func (w *WorkItem) IDString() string {
	if w.RemoteID == 0 {
		return ""
	}
	return strconv.FormatUint(w.RemoteID, 10)
}
