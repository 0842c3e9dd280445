// Package cli wires the decoders, index and watcher into the seratoconnect
// command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/chrisle/serato-connect/internal/config"
	"github.com/chrisle/serato-connect/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	seratoDir  string

	cfg    *config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "seratoconnect",
	Short:         "Read Serato DJ library, crate, history and track tag data.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if seratoDir != "" {
			loaded.Serato.RootDir = seratoDir
		}

		l, err := logging.New(loaded.Logging)
		if err != nil {
			return err
		}

		cfg = loaded
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.toml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&seratoDir, "serato-dir", "", "path to the _Serato_ folder (overrides config)")
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
