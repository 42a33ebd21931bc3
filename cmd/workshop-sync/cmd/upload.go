package cmd

import (
	"context"
	"errors"

	"go-workshop-sync/internal/models"
	"go-workshop-sync/internal/workshop"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Compile and publish local content to the workshop",
	Long: `Resolves the given directories (names, relative or absolute paths, or
patterns matched against the type's default directory), validates them and
publishes each one. Items published before are updated in place.`,
	Example: `  workshop-sync upload --blueprints "Miner*" --tags survival --compile
  workshop-sync upload -m ./MyMod --dry-run
  workshop-sync upload -w Arena --upload=false --thumbnail preview.jpg`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	addContentFlags(uploadCmd, "upload")
	uploadCmd.Flags().StringArray("tags", nil, "Tags to set on uploaded items (a single value is split on ',' and ';')")
	uploadCmd.Flags().StringSlice("exclude", nil, "File extensions to leave out of the package (e.g. .bak,.tmp)")
	uploadCmd.Flags().Bool("compile", false, "Validate content before publishing")
	uploadCmd.Flags().Bool("dry-run", false, "Pack and fingerprint but do not publish")
	uploadCmd.Flags().Bool("dev", false, "Publish as a development item")
	uploadCmd.Flags().String("visibility", "", "Visibility of new items: Public, FriendsOnly, Private, Unlisted (default from config)")
	uploadCmd.Flags().Bool("force", false, "Publish even when content is unchanged since the last publish")
	uploadCmd.Flags().String("thumbnail", "", "Preview image (relative paths are looked up in each item directory first)")
	uploadCmd.Flags().Bool("update-only", false, "Only update items that were published before")
	uploadCmd.Flags().Bool("upload", true, "Publish content; with --upload=false only tags and preview of existing items are refreshed")

	viper.BindPFlag("upload.exclude", uploadCmd.Flags().Lookup("exclude"))
	viper.BindPFlag("upload.compile", uploadCmd.Flags().Lookup("compile"))
	viper.BindPFlag("upload.dry_run", uploadCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("upload.dev", uploadCmd.Flags().Lookup("dev"))
	viper.BindPFlag("upload.visibility", uploadCmd.Flags().Lookup("visibility"))
	viper.BindPFlag("upload.force", uploadCmd.Flags().Lookup("force"))
	viper.BindPFlag("upload.thumbnail", uploadCmd.Flags().Lookup("thumbnail"))
	viper.BindPFlag("upload.update_only", uploadCmd.Flags().Lookup("update-only"))
	viper.BindPFlag("upload.upload", uploadCmd.Flags().Lookup("upload"))
}

// buildUploadRequest turns flags and config into the batch request.
func buildUploadRequest(cmd *cobra.Command) (models.BatchRequest, error) {
	items, err := readContentFlags(cmd, false)
	if err != nil {
		return models.BatchRequest{}, err
	}

	// Empty leaves the choice to the engine's configured default.
	var visibility models.Visibility
	if v := viper.GetString("upload.visibility"); v != "" {
		if visibility, err = models.ParseVisibility(v); err != nil {
			return models.BatchRequest{}, err
		}
	}

	tags, _ := cmd.Flags().GetStringArray("tags")
	if len(tags) == 0 {
		tags = globalConfig.DefaultTags
	}

	opts := models.Options{
		Tags:              tags,
		ExcludeExtensions: append(append([]string{}, globalConfig.ExcludeExtensions...), viper.GetStringSlice("upload.exclude")...),
		Compile:           viper.GetBool("upload.compile"),
		DryRun:            viper.GetBool("upload.dry_run"),
		Development:       viper.GetBool("upload.dev"),
		Visibility:        visibility,
		Force:             viper.GetBool("upload.force"),
		Thumbnail:         viper.GetString("upload.thumbnail"),
		UpdateOnly:        viper.GetBool("upload.update_only"),
		Upload:            viper.GetBool("upload.upload"),
	}
	return models.BatchRequest{Items: items, Options: opts}, nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	req, err := buildUploadRequest(cmd)
	if err != nil {
		return withExitCode(ExitInitFailed, err)
	}
	if !req.HasInputs() {
		_ = cmd.Help()
		return withExitCode(ExitNoInputs, workshop.ErrNoInputs)
	}

	env, err := newSyncEnv(false, 0)
	if err != nil {
		return withExitCode(ExitInitFailed, err)
	}
	defer env.Close()

	if err := env.client.Ping(cmd.Context()); err != nil {
		log.WithError(err).Warn("Workshop service unavailable, only compile testing available")
		req.Options.Upload = false
		req.Options.DryRun = true
		req.Options.Compile = true
	}

	deps := env.deps()
	ok, err := runBatch(cmd.Context(), "Upload", env.queue, func(ctx context.Context) (bool, error) {
		return workshop.UploadBatch(ctx, deps, req), nil
	})
	if err != nil {
		log.WithError(err).Error("Upload aborted")
		return batchError(err)
	}
	if !ok {
		return withExitCode(ExitBatchFailed, errors.New("upload finished with failures"))
	}
	log.Infof("Upload of %s content finished", globalProfile.Name)
	return nil
}
