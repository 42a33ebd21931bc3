package api

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoggingTransport is an http.RoundTripper that appends every exchange with
// the service to a log file. JSON bodies are written in full; payload and
// thumbnail uploads and file downloads are logged by headers and size only.
// The Authorization header is masked.
type LoggingTransport struct {
	Transport http.RoundTripper

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// NewLoggingTransport wraps transport (http.DefaultTransport when nil) and
// appends to the file at path.
func NewLoggingTransport(transport http.RoundTripper, path string) (*LoggingTransport, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open API log file %s: %w", path, err)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &LoggingTransport{Transport: transport, file: f, writer: bufio.NewWriter(f)}, nil
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	entry := []string{fmt.Sprintf("--- Request (%s) ---\n%s", start.Format(time.RFC3339), dumpRequest(req))}

	resp, err := t.Transport.RoundTrip(req)
	took := time.Since(start).Round(time.Millisecond)
	if err != nil {
		entry = append(entry, fmt.Sprintf("--- Response Error (%s) ---\n%v", took, err))
		t.write(entry)
		return resp, err
	}

	dump, body, err := dumpResponse(resp)
	entry = append(entry, fmt.Sprintf("--- Response (%s) ---\n%s", took, dump))
	t.write(entry)
	if err != nil {
		return nil, err
	}
	if body != nil {
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return resp, nil
}

func dumpRequest(req *http.Request) string {
	withBody := isJSON(req.Header.Get("Content-Type"))
	masked := req.Clone(req.Context())
	if masked.Header.Get("Authorization") != "" {
		masked.Header.Set("Authorization", "Bearer ***")
	}
	// The clone shares req.Body; only a fresh copy may be consumed here.
	dumpBody := false
	if withBody && req.GetBody != nil {
		if b, err := req.GetBody(); err == nil {
			masked.Body = b
			dumpBody = true
		}
	}
	dump, err := httputil.DumpRequestOut(masked, dumpBody)
	if err != nil {
		log.WithError(err).Error("Failed to dump API request for logging")
		return fmt.Sprintf("%s %s (dump failed)", req.Method, req.URL)
	}
	if !withBody && req.ContentLength > 0 {
		return fmt.Sprintf("%s(Body not logged, %d bytes)", dump, req.ContentLength)
	}
	return string(dump)
}

// dumpResponse renders the response. JSON bodies are read in full and
// returned so the caller can restore them.
func dumpResponse(resp *http.Response) (string, []byte, error) {
	headers, err := httputil.DumpResponse(resp, false)
	if err != nil {
		headers = []byte("Status: " + resp.Status + "\n(Failed to dump headers)")
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		return string(headers) + "(Body not logged)", nil, nil
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		log.WithError(err).Error("Failed to read response body for logging")
		return string(headers) + "(Body read failed)", nil, err
	}
	return string(headers) + string(body), body, nil
}

func (t *LoggingTransport) write(entry []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range entry {
		if _, err := t.writer.WriteString(s + "\n\n"); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to API log file: %v\n", err)
			return
		}
	}
	t.writer.Flush()
}

// Close flushes and closes the log file.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	errFlush := t.writer.Flush()
	errClose := t.file.Close()
	if errFlush != nil {
		return fmt.Errorf("failed to flush API log buffer: %w", errFlush)
	}
	return errClose
}
