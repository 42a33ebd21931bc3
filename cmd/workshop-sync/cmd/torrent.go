package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-workshop-sync/index"
	"go-workshop-sync/internal/models"
)

// torrentJob is one extracted item directory to build a torrent for.
type torrentJob struct {
	Record         models.DownloadRecord
	Trackers       []string
	OutputDir      string
	Overwrite      bool
	GenerateMagnet bool
}

// torrentResult is what a worker produced for one job.
type torrentResult struct {
	TorrentPath string
	Magnet      string
}

func torrentWorker(id int, jobs <-chan torrentJob, wg *sync.WaitGroup, idx bleve.Index, idxMu *sync.Mutex, successCounter, failureCounter *atomic.Int64) {
	defer wg.Done()
	log.Debugf("Torrent Worker %d starting", id)
	for job := range jobs {
		fields := log.Fields{"type": job.Record.Type, "id": job.Record.RemoteID, "directory": job.Record.Folder}
		res, err := generateTorrentFile(job.Record.Folder, job.Trackers, job.OutputDir, job.Overwrite, job.GenerateMagnet)
		if err != nil {
			log.WithFields(fields).WithError(err).Errorf("Worker %d: Failed to generate torrent", id)
			failureCounter.Add(1)
			continue
		}
		successCounter.Add(1)
		log.WithFields(fields).Infof("Worker %d: Generated torrent %s", id, res.TorrentPath)

		if idx == nil || res.TorrentPath == "" {
			continue
		}
		ct, err := models.ParseContentType(job.Record.Type)
		if err != nil {
			continue
		}
		idxMu.Lock()
		found, err := index.SetTorrentInfo(idx, index.ItemID(ct, job.Record.RemoteID), res.TorrentPath, res.Magnet)
		idxMu.Unlock()
		switch {
		case err != nil:
			log.WithFields(fields).WithError(err).Warn("Failed to store torrent info in index")
		case !found:
			log.WithFields(fields).Debug("Item not indexed, torrent info not stored")
		}
	}
	log.Debugf("Torrent Worker %d finished", id)
}

var (
	torrentItemIDs      []string
	announceURLs        []string
	torrentOutputDir    string
	overwriteTorrents   bool
	generateMagnetLinks bool
)

var torrentCmd = &cobra.Command{
	Use:   "torrent",
	Short: "Generate .torrent files for extracted downloads",
	Long: `Generates BitTorrent metainfo (.torrent) files for items previously downloaded
and extracted with the 'download' command. Requires the download history database
and the extracted directories themselves. You must specify tracker announce URLs.`,
	RunE: runTorrent,
}

func runTorrent(cmd *cobra.Command, args []string) error {
	if len(announceURLs) == 0 {
		return errors.New("at least one --announce URL is required")
	}

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		log.Warnf("Invalid concurrency value %d, defaulting to 4", concurrency)
		concurrency = 4
	}

	outputDir := torrentOutputDir
	if outputDir == "" {
		outputDir = filepath.Join(globalConfig.CachePath, "torrents")
	}

	idSet := make(map[uint64]struct{})
	for _, s := range torrentItemIDs {
		id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid item id %q: %w", s, err)
		}
		idSet[id] = struct{}{}
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	var targets []models.DownloadRecord
	seen := make(map[string]bool)
	log.Info("Scanning database for download entries...")
	errFold := db.FoldDownloadRecords(func(rec models.DownloadRecord) error {
		if rec.Folder == "" || rec.Status != models.StatusDownloaded {
			return nil
		}
		if len(idSet) > 0 {
			if _, ok := idSet[rec.RemoteID]; !ok {
				return nil
			}
		}
		if seen[rec.Folder] {
			return nil
		}
		seen[rec.Folder] = true
		targets = append(targets, rec)
		return nil
	})
	if errFold != nil {
		return fmt.Errorf("error scanning database: %w", errFold)
	}

	if len(targets) == 0 {
		if len(idSet) > 0 {
			log.Warnf("No extracted downloads found matching ids: %v", torrentItemIDs)
		} else {
			log.Info("No extracted downloads found in the database.")
		}
		return nil
	}

	var idx bleve.Index
	if globalConfig.IndexPath != "" {
		idx, err = bleve.Open(globalConfig.IndexPath)
		if err != nil {
			log.WithError(err).Warnf("Index at %s not available, torrent info will not be indexed", globalConfig.IndexPath)
			idx = nil
		} else {
			defer idx.Close()
		}
	}

	log.Infof("Generating torrents for %d directories using %d workers...", len(targets), concurrency)

	jobs := make(chan torrentJob, concurrency)
	var wg sync.WaitGroup
	var idxMu sync.Mutex
	var successCounter, failureCounter atomic.Int64

	for i := 1; i <= concurrency; i++ {
		wg.Add(1)
		go torrentWorker(i, jobs, &wg, idx, &idxMu, &successCounter, &failureCounter)
	}
	for _, rec := range targets {
		jobs <- torrentJob{
			Record:         rec,
			Trackers:       announceURLs,
			OutputDir:      outputDir,
			Overwrite:      overwriteTorrents,
			GenerateMagnet: generateMagnetLinks,
		}
	}
	close(jobs)
	wg.Wait()

	successCount := successCounter.Load()
	failCount := failureCounter.Load()
	log.Infof("Torrent generation complete. Success: %d, Failed: %d", successCount, failCount)
	if failCount > 0 {
		return fmt.Errorf("%d torrents failed to generate", failCount)
	}
	return nil
}

// generateTorrentFile writes <outputDir>/<base>.torrent for sourcePath and
// optionally a text file holding its magnet link. An existing torrent is left
// alone unless overwrite is set; the result then has an empty TorrentPath.
func generateTorrentFile(sourcePath string, trackers []string, outputDir string, overwrite bool, generateMagnetLinks bool) (torrentResult, error) {
	stat, err := os.Stat(sourcePath)
	if os.IsNotExist(err) {
		return torrentResult{}, fmt.Errorf("source path does not exist: %s", sourcePath)
	} else if err != nil {
		return torrentResult{}, fmt.Errorf("error stating source path %s: %w", sourcePath, err)
	} else if !stat.IsDir() {
		return torrentResult{}, fmt.Errorf("source path is not a directory: %s", sourcePath)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return torrentResult{}, fmt.Errorf("error creating output directory %s: %w", outputDir, err)
	}
	outPath := filepath.Join(outputDir, fmt.Sprintf("%s.torrent", filepath.Base(sourcePath)))

	if _, err := os.Stat(outPath); err == nil {
		if !overwrite {
			log.WithField("path", outPath).Info("Skipping existing torrent file (use --overwrite to replace)")
			return torrentResult{}, nil
		}
		log.WithField("path", outPath).Warn("Overwriting existing torrent file")
	}

	mi := metainfo.MetaInfo{
		AnnounceList: make([][]string, len(trackers)),
	}
	for i, tracker := range trackers {
		mi.AnnounceList[i] = []string{tracker}
	}
	if len(trackers) > 0 {
		mi.Announce = trackers[0]
	}
	mi.CreatedBy = "workshop-sync"

	const pieceLength = 256 * 1024
	info := metainfo.Info{PieceLength: pieceLength}

	log.WithField("directory", sourcePath).Debug("Building torrent info...")
	if err := info.BuildFromFilePath(sourcePath); err != nil {
		return torrentResult{}, fmt.Errorf("error building torrent info from path %s: %w", sourcePath, err)
	}
	mi.InfoBytes, err = bencode.Marshal(info)
	if err != nil {
		return torrentResult{}, fmt.Errorf("error marshaling torrent info: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return torrentResult{}, fmt.Errorf("error creating torrent file %s: %w", outPath, err)
	}
	defer f.Close()
	if err := mi.Write(f); err != nil {
		return torrentResult{}, fmt.Errorf("error writing torrent file %s: %w", outPath, err)
	}

	res := torrentResult{TorrentPath: outPath}
	if generateMagnetLinks {
		res.Magnet = magnetURI(mi.HashInfoBytes().HexString(), stat.Name(), trackers)
		magnetOutPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + "-magnet.txt"
		if err := os.WriteFile(magnetOutPath, []byte(res.Magnet), 0644); err != nil {
			// The torrent itself is usable without the magnet file.
			log.WithError(err).WithField("path", magnetOutPath).Error("Failed to write magnet link file")
		} else {
			log.WithField("path", magnetOutPath).Info("Generated magnet link file")
		}
	}
	return res, nil
}

func magnetURI(infoHash, name string, trackers []string) string {
	parts := []string{
		"magnet:?xt=urn:btih:" + infoHash,
		"dn=" + url.QueryEscape(name),
	}
	for _, tracker := range trackers {
		parts = append(parts, "tr="+url.QueryEscape(tracker))
	}
	return strings.Join(parts, "&")
}

func init() {
	rootCmd.AddCommand(torrentCmd)

	torrentCmd.Flags().StringSliceVar(&announceURLs, "announce", []string{}, "Tracker announce URL (repeatable)")
	torrentCmd.Flags().StringSliceVar(&torrentItemIDs, "id", []string{}, "Specific item id(s) to generate torrents for. Default: all extracted downloads.")
	torrentCmd.Flags().StringVarP(&torrentOutputDir, "output-dir", "o", "", "Directory to save generated .torrent files (default: <CachePath>/torrents)")
	torrentCmd.Flags().BoolVarP(&overwriteTorrents, "overwrite", "f", false, "Overwrite existing .torrent files")
	torrentCmd.Flags().BoolVar(&generateMagnetLinks, "magnet-links", false, "Generate a .txt file containing the magnet link alongside each .torrent file")
	torrentCmd.Flags().IntP("concurrency", "c", 4, "Number of concurrent torrent generation workers")
}
