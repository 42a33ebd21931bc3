package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-workshop-sync/internal/api"
	"go-workshop-sync/internal/config"
	"go-workshop-sync/internal/models"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// logApiFlag holds the value of the --log-api flag
var logApiFlag bool

// apiTimeoutFlag holds the value of the --api-timeout flag
var apiTimeoutFlag int

var (
	gameFlag       string
	dataPathFlag   string
	serviceURLFlag string
)

// globalConfig holds the loaded configuration
var globalConfig models.Config

// globalProfile is the game profile selected by config or --game
var globalProfile models.GameProfile

// globalHttpTransport holds the globally configured HTTP transport (base or logging-wrapped)
var globalHttpTransport http.RoundTripper

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "workshop-sync",
	Short: "Batch upload and download of game workshop content",
	Long: `workshop-sync publishes local mods, blueprints, scripts, worlds and scenarios
to a workshop hosting service, and downloads published items and collections
into the game's data directories.`,
	PersistentPreRunE: loadGlobalConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	defer func() {
		if loggingTransport, ok := globalHttpTransport.(*api.LoggingTransport); ok && loggingTransport != nil {
			log.Debug("Closing API logging transport file.")
			if err := loggingTransport.Close(); err != nil {
				log.WithError(err).Error("Error closing API log file")
			}
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
	}
	return exitCodeFor(err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log API requests/responses to api.log (overrides config)")
	rootCmd.PersistentFlags().IntVar(&apiTimeoutFlag, "api-timeout", -1, "Timeout for API HTTP client in seconds (overrides config, -1 uses config default)")
	rootCmd.PersistentFlags().StringVar(&gameFlag, "game", "", "Game profile: SpaceEngineers or MedievalEngineers (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dataPathFlag, "data-path", "", "Game data directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&serviceURLFlag, "service-url", "", "Workshop service base URL (overrides config)")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Logging format (text, json)")

	// Hook to configure logging before any command runs
	cobra.OnInitialize(initLogging)
}

// loadGlobalConfig loads the configuration, applies flag overrides and
// defaults, and sets up the global HTTP transport.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	var err error
	globalConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		// Every setting has a default or a flag, so a missing file is not fatal.
		log.WithError(err).Warnf("Failed to load configuration from %s", cfgFile)
	}

	if cmd.Flags().Changed("log-api") {
		globalConfig.LogApiRequests = logApiFlag
		log.Debugf("Overriding LogApiRequests based on --log-api flag: %t", logApiFlag)
	}
	if cmd.Flags().Changed("api-timeout") {
		if apiTimeoutFlag > 0 {
			globalConfig.ApiClientTimeoutSec = apiTimeoutFlag
			log.Debugf("Overriding ApiClientTimeoutSec based on --api-timeout flag: %d sec", apiTimeoutFlag)
		} else {
			log.Warnf("--api-timeout flag provided with invalid value %d, using config value: %d sec", apiTimeoutFlag, globalConfig.ApiClientTimeoutSec)
		}
	}
	if cmd.Flags().Changed("game") {
		globalConfig.Game = gameFlag
	}
	if cmd.Flags().Changed("data-path") {
		if dataPathFlag != "" {
			globalConfig.DataPath = dataPathFlag
			log.Debugf("Overriding DataPath based on --data-path flag: %s", dataPathFlag)
		} else {
			log.Warn("--data-path flag provided but value is empty, ignoring.")
		}
	}
	if cmd.Flags().Changed("service-url") {
		globalConfig.ServiceURL = serviceURLFlag
	}

	globalConfig, globalProfile, err = config.ApplyDefaults(globalConfig)
	if err != nil {
		return withExitCode(ExitInitFailed, fmt.Errorf("invalid configuration: %w", err))
	}
	log.Debugf("Game profile %s, data path %s", globalProfile.Name, globalProfile.DataPath)

	// --- Setup Global HTTP Transport ---
	globalHttpTransport = http.DefaultTransport
	if globalConfig.LogApiRequests {
		logFilePath := "api.log"
		if _, statErr := os.Stat(globalConfig.DataPath); statErr == nil {
			logFilePath = filepath.Join(globalConfig.DataPath, logFilePath)
		} else {
			log.Warnf("DataPath '%s' not found, saving api.log to current directory.", globalConfig.DataPath)
		}
		log.Infof("API logging to file: %s", logFilePath)

		loggingTransport, err := api.NewLoggingTransport(http.DefaultTransport, logFilePath)
		if err != nil {
			log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		} else {
			globalHttpTransport = loggingTransport
		}
	}
	return nil
}
