package downloader

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"go-workshop-sync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func blake3Hex(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestDownloadFile(t *testing.T) {
	content := []byte("payload bytes")
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	d := NewDownloader(srv.Client(), "key")
	target := filepath.Join(t.TempDir(), "mod", "1.zip")
	hashes := models.Hashes{BLAKE3: blake3Hex(content)}

	got, err := d.DownloadFile(context.Background(), target, srv.URL, hashes)
	require.NoError(t, err)
	assert.Equal(t, target, got)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	// Second call finds the verified file and does not hit the server.
	_, err = d.DownloadFile(context.Background(), target, srv.URL, hashes)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(target), "*.tmp"))
	assert.Empty(t, leftovers)
}

func TestDownloadFileHashMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tampered"))
	}))
	defer srv.Close()

	target := filepath.Join(t.TempDir(), "2.zip")
	_, err := NewDownloader(srv.Client(), "").DownloadFile(context.Background(), target, srv.URL, models.Hashes{BLAKE3: blake3Hex([]byte("original"))})
	assert.ErrorIs(t, err, ErrHashMismatch)
	assert.NoFileExists(t, target)

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(target), "*.tmp"))
	assert.Empty(t, leftovers, "temporary file must be removed")
}

func TestDownloadFileBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	_, err := NewDownloader(srv.Client(), "").DownloadFile(context.Background(), filepath.Join(t.TempDir(), "3.zip"), srv.URL, models.Hashes{})
	assert.ErrorIs(t, err, ErrHttpStatus)
}
