package models

import (
	"fmt"
	"strings"
)

type (
	Config struct {
		// Connection/Auth
		ServiceURL string `toml:"ServiceURL"`
		ApiKey     string `toml:"ApiKey"`

		// Game profile (SpaceEngineers, MedievalEngineers)
		Game string `toml:"Game"`

		// Paths
		DataPath     string `toml:"DataPath"`     // Game data directory holding Mods, Blueprints, Saves...
		DatabasePath string `toml:"DatabasePath"` // Audit store (bitcask)
		IndexPath    string `toml:"IndexPath"`    // Bleve index of downloaded items, empty disables indexing
		CachePath    string `toml:"CachePath"`    // Packaged uploads and downloaded payloads

		// Upload defaults
		DefaultVisibility string   `toml:"DefaultVisibility"`
		DefaultTags       []string `toml:"DefaultTags"`
		ExcludeExtensions []string `toml:"ExcludeExtensions"`

		// Behaviour
		PollIntervalMs      int  `toml:"PollIntervalMs"`
		ApiClientTimeoutSec int  `toml:"ApiClientTimeoutSec"`
		LogApiRequests      bool `toml:"LogApiRequests"`
	}

	// Options is the shared, read-only option set for one batch run.
	Options struct {
		Tags              []string
		ExcludeExtensions []string
		Compile           bool
		DryRun            bool
		Development       bool
		Visibility        Visibility
		Force             bool
		Thumbnail         string
		UpdateOnly        bool
		Extract           bool
		Upload            bool // Publish content; false only refreshes preview/tags of existing items
	}

	// BatchRequest holds the resolved per-type inputs of one invocation.
	// A nil or empty list for a type means that type is not processed.
	BatchRequest struct {
		Items       map[ContentType][]string // Local path fragments (upload) or remote ids (download)
		Collections []string
		Options     Options
	}

	// WorkshopItem is the remote metadata for one published item. Collection
	// members are returned in the same shape.
	WorkshopItem struct {
		ID          uint64   `json:"id"`
		Title       string   `json:"title"`
		Description string   `json:"description,omitempty"`
		Tags        []string `json:"tags"`
		Visibility  string   `json:"visibility,omitempty"`
		FileURL     string   `json:"fileUrl,omitempty"`
		FileSize    int64    `json:"fileSize,omitempty"`
		Hashes      Hashes   `json:"hashes"`
		UpdatedAt   int64    `json:"updatedAt,omitempty"`
	}

	Hashes struct {
		BLAKE3 string `json:"BLAKE3,omitempty"`
		SHA256 string `json:"SHA256,omitempty"`
	}

	// Api Calls and Responses
	ItemsResponse struct {
		Items []WorkshopItem `json:"items"`
	}

	ItemQuery struct {
		IDs []uint64 `json:"ids"`
	}

	PublishMetadata struct {
		Type        string   `json:"type"`
		Title       string   `json:"title"`
		Description string   `json:"description,omitempty"`
		Tags        []string `json:"tags"`
		Visibility  string   `json:"visibility,omitempty"` // Empty keeps the current visibility on update
		Development bool     `json:"development,omitempty"`
		Fingerprint string   `json:"fingerprint,omitempty"`
	}

	// PublishRequest is one create-or-update call. A zero ID creates a new item.
	PublishRequest struct {
		ID        uint64
		Metadata  PublishMetadata
		Payload   string // Packed content archive
		Thumbnail string // Optional preview image
	}

	PublishResponse struct {
		ID uint64 `json:"id"`
	}

	MetadataUpdate struct {
		Title      string   `json:"title,omitempty"`
		Tags       []string `json:"tags,omitempty"`
		Visibility string   `json:"visibility,omitempty"`
	}

	StatusResponse struct {
		Status  string `json:"status"`
		Version string `json:"version,omitempty"`
	}

	// Internal audit db entry for each uploaded directory
	PublishRecord struct {
		Path         string   `json:"path"`
		Type         string   `json:"type"`
		RemoteID     uint64   `json:"remoteId"`
		Title        string   `json:"title"`
		Tags         []string `json:"tags,omitempty"`
		Fingerprint  string   `json:"fingerprint,omitempty"`
		Timestamp    int64    `json:"timestamp"`
		Status       string   `json:"status"`
		ErrorDetails string   `json:"errorDetails,omitempty"`
	}

	// Internal audit db entry for each downloaded item
	DownloadRecord struct {
		RemoteID     uint64   `json:"remoteId"`
		Type         string   `json:"type"`
		Title        string   `json:"title"`
		Tags         []string `json:"tags,omitempty"`
		Folder       string   `json:"folder,omitempty"` // Extracted or instantiated location
		Timestamp    int64    `json:"timestamp"`
		Status       string   `json:"status"`
		ErrorDetails string   `json:"errorDetails,omitempty"`
	}
)

// Database Status Constants
const (
	StatusPending    = "Pending"
	StatusPublished  = "Published"
	StatusSkipped    = "Skipped"
	StatusDownloaded = "Downloaded"
	StatusError      = "Error"
)

// HasTag reports whether the item carries tag, ignoring case.
func (w WorkshopItem) HasTag(tag string) bool {
	for _, t := range w.Tags {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

// Get returns the inputs for one content type.
func (r BatchRequest) Get(t ContentType) []string {
	if r.Items == nil {
		return nil
	}
	return r.Items[t]
}

// With returns a copy of the request with the inputs for t replaced.
func (r BatchRequest) With(t ContentType, values []string) BatchRequest {
	items := make(map[ContentType][]string, len(r.Items)+1)
	for k, v := range r.Items {
		items[k] = v
	}
	if values == nil {
		delete(items, t)
	} else {
		items[t] = values
	}
	r.Items = items
	return r
}

// HasInputs reports whether anything at all was requested.
func (r BatchRequest) HasInputs() bool {
	if len(r.Collections) > 0 {
		return true
	}
	for _, v := range r.Items {
		if len(v) > 0 {
			return true
		}
	}
	return false
}

// Visibility is the remote visibility of a published item.
type Visibility string

const (
	VisibilityPublic      Visibility = "Public"
	VisibilityFriendsOnly Visibility = "FriendsOnly"
	VisibilityPrivate     Visibility = "Private"
	VisibilityUnlisted    Visibility = "Unlisted"
)

// ParseVisibility maps a user supplied value onto a Visibility. An empty value
// yields Public.
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "public":
		return VisibilityPublic, nil
	case "friendsonly", "friends":
		return VisibilityFriendsOnly, nil
	case "private":
		return VisibilityPrivate, nil
	case "unlisted":
		return VisibilityUnlisted, nil
	}
	return "", fmt.Errorf("invalid visibility %q (Public, FriendsOnly, Private, Unlisted)", s)
}
