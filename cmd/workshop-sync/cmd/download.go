package cmd

import (
	"context"
	"errors"
	"fmt"

	"go-workshop-sync/internal/models"
	"go-workshop-sync/internal/workshop"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download workshop items and collections",
	Long: `Fetches items by id into the download cache. Collections are expanded and
their members added to the lists of the types they are tagged with. Worlds and
scenarios are always unpacked into the game's save directories; other types are
unpacked with --extract.`,
	Example: `  workshop-sync download --mods 1001,1002 --extract
  workshop-sync download --collections 42 --blueprints 77`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	addContentFlags(downloadCmd, "download, by id")
	downloadCmd.Flags().StringSliceP("collections", "c", nil, "Collection ids whose members are downloaded")
	downloadCmd.Flags().Bool("extract", false, "Unpack downloaded mods, blueprints and scripts into the game's directories")
	downloadCmd.Flags().Int("concurrency", 4, "Number of parallel mod downloads")

	viper.BindPFlag("download.collections", downloadCmd.Flags().Lookup("collections"))
	viper.BindPFlag("download.extract", downloadCmd.Flags().Lookup("extract"))
	viper.BindPFlag("download.concurrency", downloadCmd.Flags().Lookup("concurrency"))
}

func buildDownloadRequest(cmd *cobra.Command) (models.BatchRequest, error) {
	items, err := readContentFlags(cmd, true)
	if err != nil {
		return models.BatchRequest{}, err
	}
	return models.BatchRequest{
		Items:       items,
		Collections: viper.GetStringSlice("download.collections"),
		Options:     models.Options{Extract: viper.GetBool("download.extract")},
	}, nil
}

// checkDownloadTypes rejects explicitly requested types the game cannot
// download before anything is sent to the service.
func checkDownloadTypes(req models.BatchRequest) error {
	for _, ct := range models.AllContentTypes {
		if len(req.Get(ct)) > 0 && !globalProfile.SupportsDownload(ct) {
			return fmt.Errorf("%w: downloading of %s not yet supported for %s", workshop.ErrUnsupportedType, ct, globalProfile.Name)
		}
	}
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	req, err := buildDownloadRequest(cmd)
	if err != nil {
		return withExitCode(ExitInitFailed, err)
	}
	if !req.HasInputs() {
		_ = cmd.Help()
		return withExitCode(ExitNoInputs, workshop.ErrNoInputs)
	}
	if err := checkDownloadTypes(req); err != nil {
		log.Error(err)
		return err
	}

	env, err := newSyncEnv(true, viper.GetInt("download.concurrency"))
	if err != nil {
		return withExitCode(ExitInitFailed, err)
	}
	defer env.Close()

	if err := env.client.Ping(cmd.Context()); err != nil {
		log.WithError(err).Error("Workshop service unavailable, cannot download")
		return withExitCode(ExitServiceUnavailable, err)
	}

	deps := env.deps()
	ok, err := runBatch(cmd.Context(), "Download", env.queue, func(ctx context.Context) (bool, error) {
		return workshop.DownloadBatch(ctx, deps, req)
	})
	if err != nil {
		log.WithError(err).Error("Download aborted")
		return batchError(err)
	}
	if !ok {
		return withExitCode(ExitBatchFailed, errors.New("download finished with failures"))
	}
	log.Infof("Download of %s content finished", globalProfile.Name)
	return nil
}
