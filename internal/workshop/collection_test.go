package workshop

import (
	"context"
	"testing"

	"go-workshop-sync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectionMembers() []models.WorkshopItem {
	return []models.WorkshopItem{
		{ID: 10, Title: "Thrusters", Tags: []string{"mod", "Block"}},
		{ID: 20, Title: "Miner", Tags: []string{"Blueprint"}},
		{ID: 30, Title: "Arena", Tags: []string{"World"}},
		{ID: 40, Title: "Weapons", Tags: []string{"MOD"}},
	}
}

func TestCombineCollectionWithList_NoMatchKeepsExisting(t *testing.T) {
	members := collectionMembers()

	assert.Nil(t, CombineCollectionWithList(models.Scenario, members, nil))

	existing := []string{"5"}
	got := CombineCollectionWithList(models.IngameScript, members, existing)
	assert.Equal(t, existing, got)
}

func TestCombineCollectionWithList_PrependsMatches(t *testing.T) {
	existing := []string{"1", "2"}
	got := CombineCollectionWithList(models.Mod, collectionMembers(), existing)

	assert.Equal(t, []string{"10", "40", "1", "2"}, got)
	assert.Equal(t, []string{"1", "2"}, existing, "existing list must not be modified")
}

func TestCombineCollectionWithList_NoDuplicates(t *testing.T) {
	members := append(collectionMembers(), models.WorkshopItem{ID: 10, Tags: []string{"Mod"}})
	got := CombineCollectionWithList(models.Mod, members, []string{"40"})
	assert.Equal(t, []string{"10", "40"}, got)
}

func TestFetchCollections(t *testing.T) {
	svc := &fakeService{collections: map[uint64][]models.WorkshopItem{
		1: collectionMembers()[:2],
		2: collectionMembers()[2:],
	}}

	members, err := FetchCollections(context.Background(), svc, []string{"1", " 2 "})
	require.NoError(t, err)
	assert.Len(t, members, 4)
	assert.Equal(t, 2, svc.calls)

	_, err = FetchCollections(context.Background(), svc, []string{"1", "999"})
	assert.Error(t, err, "an unknown collection is a hard error")

	_, err = FetchCollections(context.Background(), svc, []string{"abc"})
	assert.Error(t, err)
}

func TestExpandCollections_OnlyMatchingTypesActivated(t *testing.T) {
	svc := &fakeService{collections: map[uint64][]models.WorkshopItem{
		7: {
			{ID: 100, Tags: []string{"Mod"}},
			{ID: 200, Tags: []string{"Texture"}},
			{ID: 300, Tags: []string{"Other"}},
		},
	}}
	profile := testProfile(t)
	req := models.BatchRequest{
		Items:       map[models.ContentType][]string{models.Blueprint: nil},
		Collections: []string{"7"},
	}

	got, err := ExpandCollections(context.Background(), svc, profile, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"100"}, got.Get(models.Mod))
	assert.Empty(t, got.Get(models.Blueprint))
	assert.Nil(t, got.Get(models.World))
	assert.Nil(t, req.Get(models.Mod), "input request must not change")
}

func TestExpandCollections_SkipsTypesTheGameCannotDownload(t *testing.T) {
	svc := &fakeService{collections: map[uint64][]models.WorkshopItem{
		7: {{ID: 1, Tags: []string{"IngameScript"}}, {ID: 2, Tags: []string{"Blueprint"}}},
	}}
	me, err := models.LookupGameProfile("MedievalEngineers")
	require.NoError(t, err)

	got, err := ExpandCollections(context.Background(), svc, me, models.BatchRequest{Collections: []string{"7"}})
	require.NoError(t, err)
	assert.Nil(t, got.Get(models.IngameScript))
	assert.Equal(t, []string{"2"}, got.Get(models.Blueprint))
}
