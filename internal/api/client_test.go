package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go-workshop-sync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, q *CallbackQueue) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "secret", srv.Client(), q)
	c.RetryDelay = time.Millisecond
	return c
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetItemsCompletesOnlyWhenPumped(t *testing.T) {
	q := NewCallbackQueue()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/query", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var query models.ItemQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&query))
		assert.Equal(t, []uint64{11, 22}, query.IDs)
		writeJSON(w, models.ItemsResponse{Items: []models.WorkshopItem{{ID: 11, Title: "A"}, {ID: 22, Title: "B"}}})
	}, q)

	type result struct {
		items []models.WorkshopItem
		err   error
	}
	done := make(chan result, 1)
	go func() {
		items, err := c.GetItems(context.Background(), []uint64{11, 22})
		done <- result{items, err}
	}()

	require.Eventually(t, func() bool { return q.Pending() == 1 }, 2*time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("call completed before the pump ran")
	default:
	}

	assert.Equal(t, 1, q.RunCallbacks())
	res := <-done
	require.NoError(t, res.err)
	require.Len(t, res.items, 2)
	assert.Equal(t, "B", res.items[1].Title)
}

func TestRetryOnServerError(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, models.ItemsResponse{Items: []models.WorkshopItem{{ID: 5}}})
	}, nil)

	items, err := c.GetCollectionDetails(context.Background(), 99)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestCancelDuringRetryReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
	}, nil)
	c.RetryDelay = time.Minute

	start := time.Now()
	_, err := c.GetCollectionDetails(ctx, 99)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrServerError)
	assert.Less(t, time.Since(start), 30*time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"server error", http.StatusInternalServerError, ErrServerError},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}, nil)
			_, err := c.GetItems(context.Background(), []uint64{1})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad ids", http.StatusBadRequest)
	}, nil)
	_, err := c.GetItems(context.Background(), []uint64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad ids")
}

func TestPublishItemMultipart(t *testing.T) {
	dir := t.TempDir()
	payload := filepath.Join(dir, "content.zip")
	thumb := filepath.Join(dir, "thumb.png")
	require.NoError(t, os.WriteFile(payload, []byte("zipdata"), 0644))
	require.NoError(t, os.WriteFile(thumb, []byte("png"), 0644))

	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		assert.NoError(t, r.ParseMultipartForm(1<<20))

		var meta models.PublishMetadata
		assert.NoError(t, json.Unmarshal([]byte(r.FormValue(PartMetadata)), &meta))
		assert.Equal(t, "Miner", meta.Title)
		assert.Equal(t, []string{"survival"}, meta.Tags)

		if f, _, err := r.FormFile(PartPayload); assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			assert.Equal(t, "zipdata", string(data))
		}

		_, _, err := r.FormFile(PartThumbnail)
		assert.NoError(t, err)

		writeJSON(w, models.PublishResponse{ID: 777})
	}, nil)

	req := models.PublishRequest{
		Metadata:  models.PublishMetadata{Type: "Blueprint", Title: "Miner", Tags: []string{"survival"}},
		Payload:   payload,
		Thumbnail: thumb,
	}
	id, err := c.PublishItem(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint64(777), id)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/items", gotPath)

	req.ID = 777
	_, err = c.PublishItem(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/items/777", gotPath)
}

func TestPublishItemMissingPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	}, nil)
	_, err := c.PublishItem(context.Background(), models.PublishRequest{Payload: filepath.Join(t.TempDir(), "none.zip")})
	assert.Error(t, err)
}

func TestUpdateItemMetadata(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/items/42", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		var upd models.MetadataUpdate
		assert.NoError(t, json.Unmarshal([]byte(r.FormValue(PartMetadata)), &upd))
		assert.Equal(t, []string{"a", "b"}, upd.Tags)
		assert.Equal(t, "Rover", upd.Title)
		assert.Empty(t, upd.Visibility)
		assert.NotContains(t, r.FormValue(PartMetadata), "visibility")
		w.WriteHeader(http.StatusNoContent)
	}, nil)

	require.NoError(t, c.UpdateItemMetadata(context.Background(), 42, models.MetadataUpdate{Title: "Rover", Tags: []string{"a", "b"}}, ""))
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, models.StatusResponse{Status: "ok", Version: "1"})
	}, NewCallbackQueue())
	// Ping does not depend on the pump.
	assert.NoError(t, c.Ping(context.Background()))

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, models.StatusResponse{Status: "maintenance"})
	}, nil)
	assert.ErrorIs(t, c.Ping(context.Background()), ErrServerError)

	assert.ErrorIs(t, NewClient("", "", nil, nil).Ping(context.Background()), ErrNotConfigured)
}

func TestResolveURL(t *testing.T) {
	c := NewClient("http://svc:8080/", "", nil, nil)
	assert.Equal(t, "http://svc:8080/files/1.zip", c.ResolveURL("/files/1.zip"))
	assert.Equal(t, "https://cdn/x.zip", c.ResolveURL("https://cdn/x.zip"))
}

func TestLoggingTransport(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "api.log")
	lt, err := NewLoggingTransport(nil, logPath)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"ids":[3]}`, string(body))
		writeJSON(w, models.ItemsResponse{Items: []models.WorkshopItem{{ID: 3, Title: "Logged"}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", &http.Client{Transport: lt}, nil)
	items, err := c.GetItems(context.Background(), []uint64{3})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, lt.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "--- Request"))
	assert.True(t, strings.Contains(string(data), `"title":"Logged"`))
	assert.True(t, strings.Contains(string(data), `{"ids":[3]}`))
	assert.False(t, strings.Contains(string(data), "secret"))
}
