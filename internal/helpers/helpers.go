package helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// CheckHash reports whether the file at path matches any of the given hashes.
// Digests are compared case-insensitively.
func CheckHash(path string, hashes models.Hashes) bool {
	type digest struct {
		name string
		want string
		h    hash.Hash
	}
	var digests []digest
	if hashes.BLAKE3 != "" {
		digests = append(digests, digest{"BLAKE3", hashes.BLAKE3, blake3.New()})
	}
	if hashes.SHA256 != "" {
		digests = append(digests, digest{"SHA256", hashes.SHA256, sha256.New()})
	}
	if len(digests) == 0 {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warnf("Error opening file %s during hash check", path)
		}
		return false
	}
	defer f.Close()

	writers := make([]io.Writer, len(digests))
	for i, d := range digests {
		writers[i] = d.h
	}
	if _, err := io.Copy(io.MultiWriter(writers...), f); err != nil {
		log.WithError(err).Errorf("Error reading file %s for hash check", path)
		return false
	}

	for _, d := range digests {
		if strings.EqualFold(hex.EncodeToString(d.h.Sum(nil)), strings.TrimSpace(d.want)) {
			log.WithField("hash", d.name).Debugf("Hash match for %s", path)
			return true
		}
	}
	return false
}

// HasHashes reports whether any verifiable hash is present.
func HasHashes(hashes models.Hashes) bool {
	return hashes.BLAKE3 != "" || hashes.SHA256 != ""
}

// CounterWriter tracks the number of bytes written to the underlying writer.
type CounterWriter struct {
	Total  uint64
	Writer io.Writer
}

func (cw *CounterWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.Total += uint64(n)
	return n, err
}

// BytesToSize formats a byte count with two decimals and a binary unit.
func BytesToSize(bytes uint64) string {
	if bytes == 0 {
		return "0B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	return fmt.Sprintf("%.2f%s", size, units[i])
}

// ConvertToSlug turns a title into a lower-case name usable as a file or
// directory name. Spaces become '_', colons '-'; runs of separators collapse
// to '-' if they contain one, '_' otherwise, and are dropped at either end.
func ConvertToSlug(str string) string {
	var b strings.Builder
	var run []rune
	flush := func() {
		if len(run) == 0 {
			return
		}
		if b.Len() > 0 {
			if strings.ContainsRune(string(run), '-') {
				b.WriteRune('-')
			} else {
				b.WriteRune('_')
			}
		}
		run = run[:0]
	}

	for _, ch := range strings.ToLower(str) {
		switch {
		case ch == ' ' || ch == '_':
			run = append(run, '_')
		case ch == ':' || ch == '-':
			run = append(run, '-')
		case ch == '.' || (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z'):
			flush()
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// CheckAndMakeDir ensures a directory exists, creating it if necessary.
func CheckAndMakeDir(dir string) bool {
	if err := os.MkdirAll(dir, 0700); err != nil {
		log.WithError(err).Errorf("Error creating directory %s", dir)
		return false
	}
	return true
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
