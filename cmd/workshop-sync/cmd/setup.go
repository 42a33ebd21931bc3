package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go-workshop-sync/index"
	"go-workshop-sync/internal/api"
	"go-workshop-sync/internal/database"
	"go-workshop-sync/internal/downloader"
	"go-workshop-sync/internal/engine"
	"go-workshop-sync/internal/models"
	"go-workshop-sync/internal/workshop"

	"github.com/blevesearch/bleve/v2"
	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// contentFlags maps the per-type selection flags onto content types.
var contentFlags = []struct {
	name  string
	short string
	ct    models.ContentType
	usage string
}{
	{"mods", "m", models.Mod, "Mods"},
	{"blueprints", "b", models.Blueprint, "Blueprints"},
	{"scripts", "s", models.IngameScript, "In-game scripts"},
	{"worlds", "w", models.World, "Worlds"},
	{"scenarios", "", models.Scenario, "Scenarios"},
}

func addContentFlags(c *cobra.Command, what string) {
	for _, f := range contentFlags {
		c.Flags().StringArrayP(f.name, f.short, nil, fmt.Sprintf("%s to %s (repeatable)", f.usage, what))
	}
}

// readContentFlags collects the per-type inputs. When split is set, each value
// may hold several comma separated entries.
func readContentFlags(c *cobra.Command, split bool) (map[models.ContentType][]string, error) {
	items := make(map[models.ContentType][]string)
	for _, f := range contentFlags {
		values, err := c.Flags().GetStringArray(f.name)
		if err != nil {
			return nil, err
		}
		if split {
			values = splitList(values)
		}
		if len(values) > 0 {
			items[f.ct] = values
		}
	}
	return items, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })...)
	}
	return out
}

// syncEnv holds the collaborators of one batch run.
type syncEnv struct {
	db     *database.DB
	index  bleve.Index
	queue  *api.CallbackQueue
	client *api.Client
	engine *engine.Engine
}

// newSyncEnv opens the audit store, the optional search index and builds the
// service client and content engine.
func newSyncEnv(withIndex bool, concurrency int) (*syncEnv, error) {
	env := &syncEnv{queue: api.NewCallbackQueue()}

	log.Infof("Opening database at: %s", globalConfig.DatabasePath)
	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	env.db = db

	if withIndex && globalConfig.IndexPath != "" {
		idx, err := index.OpenOrCreateIndex(globalConfig.IndexPath)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		env.index = idx
	}

	apiClient := &http.Client{
		Timeout:   time.Duration(globalConfig.ApiClientTimeoutSec) * time.Second,
		Transport: globalHttpTransport,
	}
	env.client = api.NewClient(globalConfig.ServiceURL, globalConfig.ApiKey, apiClient, env.queue)

	// Payload transfers can take longer than any API timeout.
	fetcher := downloader.NewDownloader(&http.Client{Transport: globalHttpTransport}, globalConfig.ApiKey)

	env.engine = engine.New(env.client, fetcher, globalProfile, globalConfig.CachePath)
	if v, err := models.ParseVisibility(globalConfig.DefaultVisibility); err == nil {
		env.engine.DefaultVisibility = v
	}
	if concurrency > 0 {
		env.engine.Concurrency = concurrency
	}
	return env, nil
}

func (e *syncEnv) deps() workshop.Deps {
	deps := workshop.Deps{
		Service: e.client,
		Engine:  e.engine,
		Profile: globalProfile,
		Store:   e.db,
	}
	if e.index != nil {
		deps.Index = &index.Indexer{Index: e.index}
	}
	return deps
}

func (e *syncEnv) Close() {
	if e.index != nil {
		if err := e.index.Close(); err != nil {
			log.WithError(err).Error("Error closing Bleve index")
		}
	}
	if e.db != nil {
		log.Debug("Closing database.")
		if err := e.db.Close(); err != nil {
			log.WithError(err).Error("Error closing database")
		}
	}
}

// runBatch submits fn and polls it, servicing the callback queue and showing
// a progress line until it finishes.
func runBatch(ctx context.Context, name string, queue *api.CallbackQueue, fn func(context.Context) (bool, error)) (bool, error) {
	writer := uilive.New()
	writer.Start()
	defer writer.Stop()

	start := time.Now()
	task := workshop.Submit(ctx, fn)
	interval := time.Duration(globalConfig.PollIntervalMs) * time.Millisecond
	ok, err := workshop.Poll(task, interval, queue, func() {
		fmt.Fprintf(writer, "%s running... %s elapsed\n", name, time.Since(start).Round(time.Second))
	})
	fmt.Fprintf(writer, "%s finished in %s\n", name, time.Since(start).Round(time.Millisecond))
	return ok, err
}
