package workshop

import (
	"os"
	"path/filepath"
	"strings"

	"go-workshop-sync/internal/helpers"
	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
)

// ResolvePaths expands user path fragments for one content type into existing
// absolute directories. A fragment that is neither an existing directory nor
// an absolute path is taken relative to the type's default directory. The last
// path segment is matched as a pattern against its parent directory. Hidden
// directories and directories created by a download are never returned.
func ResolvePaths(spec models.TypeSpec, profile models.GameProfile, fragments []string) []string {
	var paths []string
	seen := make(map[string]bool)

	for _, fragment := range fragments {
		if strings.TrimSpace(fragment) == "" {
			continue
		}
		candidate := fragment
		if !helpers.IsDir(fragment) && !filepath.IsAbs(fragment) {
			candidate = filepath.Join(profile.ItemPath(spec.Type), fragment)
		}

		matches := globDirs(candidate)
		if len(matches) == 0 {
			log.Warnf("Directory not found, skipping: %s", candidate)
			continue
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				log.WithError(err).Warnf("Cannot make %s absolute, skipping", m)
				continue
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			paths = append(paths, abs)
		}
	}
	return paths
}

// globDirs matches the last segment of pattern against the entries of its
// parent directory, one level only.
func globDirs(pattern string) []string {
	clean := filepath.Clean(pattern)
	parent, leaf := filepath.Split(clean)
	if leaf == "." || leaf == ".." {
		// Never listed by ReadDir.
		if helpers.IsDir(clean) {
			return []string{clean}
		}
		return nil
	}
	if parent == "" {
		parent = "."
	}

	entries, err := os.ReadDir(parent)
	if err != nil {
		log.WithError(err).Debugf("Cannot read %s", parent)
		return nil
	}

	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if isExcludedDir(name) {
			continue
		}
		// A literal name always matches, so directory names containing
		// pattern characters still resolve.
		ok := name == leaf
		if !ok {
			ok, err = filepath.Match(leaf, name)
			if err != nil {
				log.WithError(err).Warnf("Invalid pattern %q", leaf)
				return nil
			}
		}
		if !ok {
			continue
		}
		full := filepath.Join(parent, name)
		if helpers.IsDir(full) {
			matches = append(matches, full)
		}
	}
	return matches
}

func isExcludedDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, models.DownloadPrefix)
}
