package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"go-workshop-sync/internal/database"
	"go-workshop-sync/internal/helpers"
	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// dbCmd represents the base command for database operations
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the publish and download database",
	Long:  `Perform operations like viewing or verifying the recorded publish and download outcomes.`,
}

// dbViewCmd represents the command to view database entries
var dbViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View entries stored in the database",
	Long:  `Lists the published directories and downloaded items recorded in the database.`,
	RunE:  runDbView,
}

// dbVerifyCmd represents the command to verify database entries against the filesystem
var dbVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify database entries against the filesystem",
	Long: `Checks that published source directories and extracted download folders still
exist. With --prune, entries whose directory is gone are removed.`,
	RunE: runDbVerify,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbViewCmd)
	dbCmd.AddCommand(dbVerifyCmd)

	dbViewCmd.Flags().String("type", "", "Only show entries of this content type")
	dbVerifyCmd.Flags().Bool("prune", false, "Remove entries whose directory no longer exists")
}

func openDatabase() (*database.DB, error) {
	db, err := database.Open(globalConfig.DatabasePath)
	if err != nil {
		return nil, withExitCode(ExitInitFailed, fmt.Errorf("failed to open database at %s: %w", globalConfig.DatabasePath, err))
	}
	return db, nil
}

func runDbView(cmd *cobra.Command, args []string) error {
	log.Info("Viewing database entries...")
	filter, _ := cmd.Flags().GetString("type")
	if filter != "" {
		ct, err := models.ParseContentType(filter)
		if err != nil {
			return err
		}
		filter = ct.String()
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Published\nType\tTitle\tRemote ID\tStatus\tWhen\tPath")
	fmt.Fprintln(tw, "----\t-----\t---------\t------\t----\t----")
	published := 0
	errFold := db.FoldPublishRecords(func(rec models.PublishRecord) error {
		if filter != "" && rec.Type != filter {
			return nil
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", rec.Type, rec.Title, rec.RemoteID, rec.Status, formatTimestamp(rec.Timestamp), rec.Path)
		published++
		return nil
	})
	if errFold != nil {
		log.WithError(errFold).Error("Error occurred during database scan (Fold)")
	}

	fmt.Fprintln(tw, "\nDownloaded\nType\tTitle\tRemote ID\tStatus\tWhen\tFolder")
	fmt.Fprintln(tw, "----\t-----\t---------\t------\t----\t------")
	downloaded := 0
	errFold = db.FoldDownloadRecords(func(rec models.DownloadRecord) error {
		if filter != "" && rec.Type != filter {
			return nil
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", rec.Type, rec.Title, rec.RemoteID, rec.Status, formatTimestamp(rec.Timestamp), rec.Folder)
		downloaded++
		return nil
	})
	if errFold != nil {
		log.WithError(errFold).Error("Error occurred during database scan (Fold)")
	}

	if err := tw.Flush(); err != nil {
		log.WithError(err).Error("Error flushing table writer for db view")
	}
	log.Infof("Displayed %d published and %d downloaded entries.", published, downloaded)
	return nil
}

func formatTimestamp(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).Format("2006-01-02 15:04")
}

func runDbVerify(cmd *cobra.Command, args []string) error {
	log.Info("Verifying database entries against filesystem...")
	prune, _ := cmd.Flags().GetBool("prune")

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	var total, ok int
	var stale [][]byte

	errFold := db.FoldPublishRecords(func(rec models.PublishRecord) error {
		total++
		if helpers.IsDir(rec.Path) {
			ok++
			return nil
		}
		log.Warnf("Published source missing: %s (%s %d)", rec.Path, rec.Type, rec.RemoteID)
		stale = append(stale, database.PublishKey(rec.Path))
		return nil
	})
	if errFold != nil {
		return fmt.Errorf("error scanning database: %w", errFold)
	}

	errFold = db.FoldDownloadRecords(func(rec models.DownloadRecord) error {
		if rec.Folder == "" {
			return nil
		}
		total++
		if helpers.IsDir(rec.Folder) {
			ok++
			return nil
		}
		log.Warnf("Downloaded folder missing: %s (%s %d)", rec.Folder, rec.Type, rec.RemoteID)
		if ct, err := models.ParseContentType(rec.Type); err == nil {
			stale = append(stale, database.DownloadKey(ct, rec.RemoteID))
		}
		return nil
	})
	if errFold != nil {
		return fmt.Errorf("error scanning database: %w", errFold)
	}

	log.Infof("Verified %d entries: %d present, %d missing", total, ok, total-ok)
	if !prune || len(stale) == 0 {
		return nil
	}

	removed := 0
	for _, key := range stale {
		if err := db.Delete(key); err != nil {
			log.WithError(err).Errorf("Failed to remove entry %s", string(key))
			continue
		}
		removed++
	}
	log.Infof("Pruned %d stale entries", removed)
	return nil
}
