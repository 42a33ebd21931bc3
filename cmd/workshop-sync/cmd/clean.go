package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().Bool("downloads", false, "Also remove extracted download directories from the game's content directories")
	cleanCmd.Flags().BoolP("torrents", "t", false, "Also remove *.torrent files")
	cleanCmd.Flags().Bool("magnets", false, "Also remove *-magnet.txt files")
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove temporary files from the cache directory",
	Long: `Recursively scans the configured CachePath and removes any files ending with
the .tmp extension. Optionally removes *.torrent and *-magnet.txt files, and the
directories previously extracted by 'download --extract'.`,
	RunE: runClean,
}

// cleanCounts tallies removals per kind.
type cleanCounts struct {
	removed map[string]int
	failed  int
}

func (c *cleanCounts) remove(kind, path string, removeFn func(string) error) {
	if err := removeFn(path); err != nil {
		if os.IsNotExist(err) {
			log.Warnf("Attempted to remove %s %q, but it was already gone.", kind, path)
			return
		}
		log.Errorf("Failed to remove %s %q: %v", kind, path, err)
		c.failed++
		return
	}
	log.Infof("Removed %s: %s", kind, path)
	c.removed[kind]++
}

func (c *cleanCounts) summary() string {
	var parts []string
	for _, kind := range []string{".tmp file", ".torrent file", "-magnet.txt file", "download directory"} {
		if n := c.removed[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s(s)", n, kind))
		}
	}
	summary := "Clean complete. Removed: "
	if len(parts) > 0 {
		summary += strings.Join(parts, ", ")
	} else {
		summary += "0 files"
	}
	if c.failed > 0 {
		summary += fmt.Sprintf(". Failed to remove %d item(s).", c.failed)
	}
	return summary
}

func runClean(cmd *cobra.Command, args []string) error {
	cleanDownloads, _ := cmd.Flags().GetBool("downloads")
	cleanTorrents, _ := cmd.Flags().GetBool("torrents")
	cleanMagnets, _ := cmd.Flags().GetBool("magnets")

	counts := &cleanCounts{removed: make(map[string]int)}
	var walkErr error

	cachePath := globalConfig.CachePath
	if info, err := os.Stat(cachePath); err != nil || !info.IsDir() {
		log.Warnf("Cache directory %s not found, nothing to clean there", cachePath)
	} else {
		log.Infof("Scanning for temporary files in %s...", cachePath)
		walkErr = filepath.Walk(cachePath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				log.Warnf("Error accessing path %q during scan: %v", path, err)
				return nil
			}
			if info.IsDir() {
				return nil
			}
			if kind := cleanKind(info.Name(), cleanTorrents, cleanMagnets); kind != "" {
				counts.remove(kind, path, os.Remove)
			}
			return nil
		})
		if walkErr != nil {
			log.Errorf("Error during directory walk of %q: %v", cachePath, walkErr)
		}
	}

	if cleanDownloads {
		for _, ct := range models.AllContentTypes {
			for _, dir := range extractedDirs(globalProfile.ItemPath(ct)) {
				counts.remove("download directory", dir, os.RemoveAll)
			}
		}
	}

	log.Info(counts.summary())
	if counts.failed > 0 || walkErr != nil {
		return fmt.Errorf("clean finished with %d failure(s)", counts.failed)
	}
	return nil
}

func cleanKind(name string, torrents, magnets bool) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tmp"):
		return ".tmp file"
	case torrents && strings.HasSuffix(lower, ".torrent"):
		return ".torrent file"
	case magnets && strings.HasSuffix(lower, "-magnet.txt"):
		return "-magnet.txt file"
	}
	return ""
}

// extractedDirs lists the directories under dir that were created by extracting
// downloads.
func extractedDirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), models.DownloadPrefix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}
