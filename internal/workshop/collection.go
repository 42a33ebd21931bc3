package workshop

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
)

// FetchCollections fetches the members of every collection, one call per
// collection. Any failure is returned since the requested set cannot be
// determined without it.
func FetchCollections(ctx context.Context, svc Service, ids []string) ([]models.WorkshopItem, error) {
	var members []models.WorkshopItem
	for _, raw := range ids {
		id, err := parseID(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid collection id %q: %w", raw, err)
		}
		items, err := svc.GetCollectionDetails(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("collection %d: %w", id, err)
		}
		log.Infof("Collection %d: %d item(s)", id, len(items))
		members = append(members, items...)
	}
	return members, nil
}

// CombineCollectionWithList prepends the ids of members tagged with ct's name
// to existing. An id already listed, or seen in an earlier collection, is not
// added again. When nothing matches, existing is returned as is, nil included.
func CombineCollectionWithList(ct models.ContentType, members []models.WorkshopItem, existing []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[strings.TrimSpace(id)] = true
	}

	var found []string
	for _, m := range members {
		if !m.HasTag(ct.String()) {
			continue
		}
		id := strconv.FormatUint(m.ID, 10)
		if seen[id] {
			continue
		}
		seen[id] = true
		found = append(found, id)
	}

	if len(found) == 0 {
		return existing
	}
	log.Debugf("Adding %d %s(s) from collections", len(found), ct)
	return append(found, existing...)
}

// ExpandCollections returns a copy of req with the members of req.Collections
// merged into the id lists of every type the game can download.
func ExpandCollections(ctx context.Context, svc Service, profile models.GameProfile, req models.BatchRequest) (models.BatchRequest, error) {
	if len(req.Collections) == 0 {
		return req, nil
	}
	members, err := FetchCollections(ctx, svc, req.Collections)
	if err != nil {
		return req, err
	}
	for _, ct := range profile.DownloadTypes {
		combined := CombineCollectionWithList(ct, members, req.Get(ct))
		if combined != nil {
			req = req.With(ct, combined)
		}
	}
	return req, nil
}

func parseID(raw string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
}
