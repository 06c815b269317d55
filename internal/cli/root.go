// Package cli implements the grimoire command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"grimoire/internal/client"
	"grimoire/internal/config"
)

var (
	apiURL   string
	jsonOut  bool
	logLevel string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "grimoire",
	Short: "Reference catalog entities from rich-text documents",
	Long: `grimoire encodes, decodes and resolves references between catalog
entities (rules, abilities, feats, spells) embedded in rich-text documents.

Example usage:
  grimoire search "bola de fogo"        # Find reference candidates
  grimoire encode --type Spell --id s1 --label "Bola de Fogo"
  grimoire decode notes.html            # Show the segments of a document
  grimoire compose > notes.html         # Write text, @ to insert references
  grimoire read notes.html              # Browse a document with previews`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if strings.TrimSpace(apiURL) == "" {
			apiURL = cfg.APIURL
		}
		logger, err = config.NewLogger(logLevel)
		if err != nil {
			return err
		}
		return nil
	},
}

func Execute() {
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (default from GRIMOIRE_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level for diagnostics on stderr")
}

func newAPIClient() (*client.Client, error) {
	c, err := client.New(apiURL)
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}
	return c, nil
}

func getLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// readDocument reads the named file, or stdin when name is empty or "-".
func readDocument(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(raw), nil
}
