package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hprofdecode/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configFile string

	logger utils.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hprofdecode",
	Short: "A streaming decoder for Java HPROF heap dump files",
	Long: `hprofdecode is a CLI tool for decoding binary HPROF heap dump files.

It streams the file once, dispatching each record to a chosen consumer:
a tally of record counts, a log of decoded records, a GORM-backed export to
a columnar database, or a retained-size graph analysis.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (default: none, built-in defaults apply)")

	binName := BinName()
	rootCmd.Example = `  # Count records by kind
  ` + binName + ` decode ./heap.hprof

  # Log decoded records
  ` + binName + ` decode ./heap.hprof --consumer print -v

  # Export to a local sqlite database
  ` + binName + ` decode ./heap.hprof --consumer columnar --db-type sqlite --db-name heap.db`
}

// GetLogger returns the configured logger.
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}
