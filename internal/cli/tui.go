package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"grimoire/internal/client"
	"grimoire/internal/entity"
	"grimoire/internal/render"
	"grimoire/internal/resolve"
	"grimoire/internal/suggest"
	"grimoire/internal/tui"
)

var (
	composeExclude string
	composeLimit   int
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Write a document, typing @ to insert references",
	Long: `Opens a one-line composer. Typing @ followed by a few letters shows
matching entities; pick one with the arrow keys and Enter to insert a
reference. Press Enter with no list open to print the document.

Controls:
  @        - Start a reference
  ↑/↓      - Move through candidates
  Enter    - Pick candidate / accept document
  Esc      - Close the list / quit without output`,
	Args: cobra.NoArgs,
	RunE: runCompose,
}

var readCmd = &cobra.Command{
	Use:   "read [file]",
	Short: "Browse a document and preview its references",
	Long: `Renders a stored document with reference badges. Tab and Shift+Tab move
between badges; the focused badge opens a preview of the referenced entity.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRead,
}

var previewCmd = &cobra.Command{
	Use:   "preview [type] [id]",
	Short: "Resolve one reference and print its preview",
	Args:  cobra.ExactArgs(2),
	RunE:  runPreview,
}

func init() {
	composeCmd.Flags().StringVar(&composeExclude, "exclude", "", "entity id never suggested (the entity being edited)")
	composeCmd.Flags().IntVarP(&composeLimit, "limit", "n", suggest.DefaultLimit, "maximum candidates shown")
	rootCmd.AddCommand(composeCmd, readCmd, previewCmd)
}

func newResolveCache() (*resolve.Cache, error) {
	c, err := newAPIClient()
	if err != nil {
		return nil, err
	}
	fetcher := resolve.NewHTTPFetcher(c, client.IsNotFound)
	return resolve.NewCache(fetcher, resolve.Options{Logger: getLogger()}), nil
}

func runCompose(cmd *cobra.Command, args []string) error {
	agg, err := newAggregator()
	if err != nil {
		return err
	}

	composer := tui.NewComposer(agg, tui.ComposerOptions{
		Limit:     composeLimit,
		ExcludeID: composeExclude,
		Logger:    getLogger(),
	})
	p := tea.NewProgram(composer, tea.WithOutput(os.Stderr))
	composer.Bind(p.Send)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if composer.Aborted() {
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), composer.Document())
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	document, err := readDocument(cmd, args)
	if err != nil {
		return err
	}
	cache, err := newResolveCache()
	if err != nil {
		return err
	}

	reader := tui.NewReader(document, cache, tui.ReaderOptions{})
	p := tea.NewProgram(reader, tea.WithAltScreen())
	reader.Bind(p.Send)
	if _, err := p.Run(); err != nil {
		reader.Close()
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	t, err := entity.Parse(args[0])
	if err != nil {
		return err
	}
	cache, err := newResolveCache()
	if err != nil {
		return err
	}
	defer cache.Wait()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	outcome := cache.Resolve(ctx, t, args[1])

	if jsonOut {
		data, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal outcome: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if outcome.State != resolve.StateReady {
		cmd.Println(outcome.Placeholder())
		return nil
	}
	d := outcome.Detail
	cmd.Printf("%s (%s)\n", d.Name, d.Type)
	keys := make([]string, 0, len(d.Attributes))
	for key := range d.Attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		cmd.Printf("  %s: %s\n", key, d.Attributes[key])
	}
	if d.Description != "" {
		cmd.Println()
		cmd.Println(render.PlainText(d.Description))
	}
	return nil
}
