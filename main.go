// ABOUTME: Entry point for the aptest playback control harness
// ABOUTME: Parses the optional source argument, loads configuration and runs the harness
package main

import (
	"fmt"
	"os"

	"github.com/Resonate-Protocol/aptest/internal/app"
	"github.com/Resonate-Protocol/aptest/internal/config"
	"github.com/Resonate-Protocol/aptest/internal/logging"
	"github.com/Resonate-Protocol/aptest/internal/version"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   version.Product + " [url]",
	Short: "Interactive playback control harness",
	Long: `Plays one source through the playback engine and controls it from the keyboard.

The source may be a file path, file://, http(s):// or ws(s):// URL. Keys 1-9
play the configured presets, q quits, p prints status and any unbound key
prints the full key list.`,
	Version:       version.Version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := afero.NewOsFs()

		cfg, err := config.Load(fs)
		if err != nil {
			return err
		}

		log, closer, err := logging.New(fs, cfg.Log)
		if err != nil {
			return err
		}
		if cfg.File != "" {
			log.Debugf("Loaded config from %s", cfg.File)
		}

		url := cfg.DefaultURL
		if len(args) == 1 {
			url = args[0]
		}

		app.Run(app.Options{
			URL:    url,
			Config: cfg,
			Logger: log,
			Exit: func(code int) {
				closer.Close()
				os.Exit(code)
			},
		})
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", version.Product, err)
		os.Exit(1)
	}
}
