package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is the current version of the tool
	Version = "unknown"
	// Commit is the git commit hash
	Commit = "unknown"
	// BuildDate is the date the binary was built
	BuildDate = "unknown"
)

// defaults
var (
	DefaultLogFormat     = "human"
	DefaultMaxDiffLength = uint(65536)
)

type Options struct {
	Debug         bool   `mapstructure:"debug"`
	InputDir      string `mapstructure:"input-dir"`
	SearchString  string `mapstructure:"search"`
	ReplaceString string `mapstructure:"replace"`
	OutputDir     string `mapstructure:"output-dir"`
	MaxDiffLength uint   `mapstructure:"max-diff-length"`
	LogFormat     string `mapstructure:"log-format"`
}

// Parse parses command line flags and environment variables
func Parse() *Options {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:     "policy-transform",
		Short:   "Rewrite environment identifiers in exported policy bundles and harvest asset uids",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip validation if we're just showing help
			if cmd.Flags().Changed("help") {
				return nil
			}

			// Bind all flags to viper
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			// Unmarshal viper config into options struct
			if err := viper.Unmarshal(opts); err != nil {
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}

			// Check required options
			errors := opts.CheckRequired()
			if len(errors) > 0 {
				var errorMsg = ""
				for _, err := range errors {
					errorMsg += fmt.Sprintf("'%s', ", err)
				}
				return fmt.Errorf("error parsing command line flags: %s", errorMsg)
			}

			// Configure logging based on debug mode and log format
			consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, NoColor: true}
			if opts.Debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				if opts.LogFormat == "human" {
					consoleWriter.TimeFormat = time.RFC1123
				}
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
				if opts.LogFormat == "human" {
					consoleWriter.PartsExclude = []string{"time", "level"}
				}
			}
			if opts.LogFormat == "human" {
				consoleWriter.FormatFieldName = func(i interface{}) string { return fmt.Sprintf("(%s: ", i) }
				consoleWriter.FormatFieldValue = func(i interface{}) string { return fmt.Sprintf("%s)", i) }
			}
			log.Logger = log.Output(consoleWriter)

			// Log options
			opts.LogOptions()

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// The actual execution logic is handled in main.go using the
			// parsed options
			return nil
		},
		// Don't show usage on errors
		SilenceUsage: true,
	}

	// Create our own help command that exits after showing help
	defaultHelpFunc := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		defaultHelpFunc(cmd, args)
		os.Exit(0)
	})

	// Set up viper to read env variables
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Configure default values in viper
	viper.SetDefault("log-format", DefaultLogFormat)
	viper.SetDefault("max-diff-length", DefaultMaxDiffLength)

	// Basic flags
	rootCmd.Flags().BoolP("debug", "d", false, "Activate debug mode")
	rootCmd.Flags().String("log-format", DefaultLogFormat, "Log format (human or json)")

	// Transformation related
	rootCmd.Flags().StringP("input-dir", "i", "", "Directory containing JSON files and ZIP archives to process (required)")
	rootCmd.Flags().StringP("search", "s", "", "Substring to search for in every string value (required)")
	rootCmd.Flags().StringP("replace", "r", "", "Substring to replace with (may be empty)")
	rootCmd.Flags().StringP("output-dir", "o", "", "Output folder (defaults to ./policy-transform-<timestamp>)")
	rootCmd.Flags().String("max-diff-length", fmt.Sprintf("%d", DefaultMaxDiffLength), "Max change-report character count")

	// Check if version flag was specified directly
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			fmt.Println(rootCmd.Version)
			os.Exit(0)
		}
	}

	// Execute the root command
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}

	return opts
}

func (o *Options) CheckRequired() []string {
	var errors []string
	if o.InputDir == "" {
		errors = append(errors, "input-dir")
	}
	if o.SearchString == "" {
		errors = append(errors, "search")
	}
	return errors
}

// ResolveOutputDir returns the output folder, falling back to a
// timestamped folder in the working directory when none was given.
func (o *Options) ResolveOutputDir() string {
	if o.OutputDir != "" {
		return o.OutputDir
	}
	return fmt.Sprintf("policy-transform-%s", time.Now().Format("200601021504"))
}

// LogOptions logs all the options
func (o *Options) LogOptions() {
	if Version != "unknown" && BuildDate != "unknown" {
		log.Info().Msgf("✨ Running %s (%s) with:", Version, BuildDate)
	} else {
		log.Info().Msg("✨ Running with:")
	}
	log.Info().Msgf("✨ - input-dir: %s", o.InputDir)
	log.Info().Msgf("✨ - search: %s", o.SearchString)
	log.Info().Msgf("✨ - replace: %s", o.ReplaceString)
	log.Info().Msgf("✨ - output-dir: %s", o.ResolveOutputDir())
	if o.LogFormat != DefaultLogFormat {
		log.Info().Msgf("✨ - log-format: %s", o.LogFormat)
	}
	if o.MaxDiffLength != DefaultMaxDiffLength {
		log.Info().Msgf("✨ - max-diff-length: %d", o.MaxDiffLength)
	}
	if o.Debug {
		log.Info().Msgf("✨ - debug: %t - This is slower because it will do more checks", o.Debug)
	}
}
