package index

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go-workshop-sync/internal/models"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
)

const defaultIndexPath = "workshop.bleve"

// Item is one downloaded workshop item in the search index. Fields are
// searchable by their JSON names, e.g. '+type:Blueprint' or '+tags:pvp'.
type Item struct {
	ID          string    `json:"id"`   // d_<type>_<remote id>, same as the audit store key
	Type        string    `json:"type"` // Content type name
	RemoteID    uint64    `json:"remoteId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Folder      string    `json:"folder,omitempty"`  // Extracted or instantiated location
	Payload     string    `json:"payload,omitempty"` // Cached archive
	IndexedAt   time.Time `json:"indexedAt"`

	// Torrent Information (populated by the 'torrent' command)
	TorrentPath string `json:"torrentPath,omitempty"`
	MagnetLink  string `json:"magnetLink,omitempty"`
}

// OpenOrCreateIndex opens an existing Bleve index or creates a new one if it doesn't exist.
func OpenOrCreateIndex(indexPath string) (bleve.Index, error) {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}

	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		log.Infof("Creating new index at: %s", indexPath)
		mapping := bleve.NewIndexMapping()
		index, err = bleve.New(indexPath, mapping)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		log.Debugf("Opened existing index at: %s", indexPath)
	}
	return index, nil
}

// IndexItem adds or updates an item in the Bleve index.
func IndexItem(index bleve.Index, item Item) error {
	return index.Index(item.ID, item)
}

// ItemID is the document id of a downloaded item.
func ItemID(t models.ContentType, remoteID uint64) string {
	return fmt.Sprintf("d_%s_%d", strings.ToLower(t.String()), remoteID)
}

// Indexer records downloaded items in a Bleve index.
type Indexer struct {
	Index bleve.Index
}

// IndexDownload adds or refreshes the entry for a downloaded item.
func (x *Indexer) IndexDownload(item *models.WorkItem, folder string) error {
	entry := Item{
		ID:        ItemID(item.Type, item.RemoteID),
		Type:      item.Type.String(),
		RemoteID:  item.RemoteID,
		Title:     item.Title,
		Tags:      item.Tags,
		Folder:    folder,
		Payload:   item.PayloadPath,
		IndexedAt: time.Now(),
	}
	if item.Remote != nil {
		entry.Description = item.Remote.Description
	}
	if err := IndexItem(x.Index, entry); err != nil {
		return fmt.Errorf("indexing %s: %w", entry.ID, err)
	}
	log.Debugf("Indexed %s", entry.ID)
	return nil
}

// SearchIndex performs a search query against the index.
func SearchIndex(index bleve.Index, query string) (*bleve.SearchResult, error) {
	searchQuery := bleve.NewQueryStringQuery(query)
	searchRequest := bleve.NewSearchRequest(searchQuery)
	searchRequest.Fields = []string{"*"} // Request all stored fields
	searchResults, err := index.Search(searchRequest)
	if err != nil {
		return nil, err
	}
	return searchResults, nil
}

// SetTorrentInfo stores torrent details on an indexed item. Items that are not
// indexed yet are left alone and reported as not found.
func SetTorrentInfo(index bleve.Index, id, torrentPath, magnet string) (bool, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Fields = []string{"*"}
	res, err := index.Search(req)
	if err != nil {
		return false, err
	}
	if len(res.Hits) == 0 {
		return false, nil
	}
	item := itemFromFields(id, res.Hits[0].Fields)
	item.TorrentPath = torrentPath
	item.MagnetLink = magnet
	return true, IndexItem(index, item)
}

func itemFromFields(id string, fields map[string]interface{}) Item {
	item := Item{ID: id}
	item.Type, _ = fields["type"].(string)
	item.Title, _ = fields["title"].(string)
	item.Description, _ = fields["description"].(string)
	item.Folder, _ = fields["folder"].(string)
	item.Payload, _ = fields["payload"].(string)
	if n, ok := fields["remoteId"].(float64); ok {
		item.RemoteID = uint64(n)
	}
	if s, ok := fields["indexedAt"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			item.IndexedAt = ts
		}
	}
	switch tags := fields["tags"].(type) {
	case string:
		item.Tags = []string{tags}
	case []interface{}:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				item.Tags = append(item.Tags, s)
			}
		}
	}
	return item
}

// DeleteIndex removes the index directory. Use with caution!
func DeleteIndex(indexPath string) error {
	if indexPath == "" {
		indexPath = defaultIndexPath
	}
	log.Warnf("Attempting to delete index at: %s", indexPath)
	return os.RemoveAll(indexPath)
}
