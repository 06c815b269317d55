package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"grimoire/internal/refcodec"
)

var renderView string

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Render a document to read-only HTML on the server",
	Long: `Sends the document to the API and prints the rendered HTML followed by
the entities it references. With --view the references are prefetched into
that open view.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderView, "view", "", "view id to prefetch references into")
	rootCmd.AddCommand(renderCmd)
}

type renderResponse struct {
	HTML       string               `json:"html"`
	References []refcodec.Reference `json:"references"`
}

func runRender(cmd *cobra.Command, args []string) error {
	document, err := readDocument(cmd, args)
	if err != nil {
		return err
	}
	c, err := newAPIClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var resp renderResponse
	body := map[string]string{"document": document, "viewId": renderView}
	if err := c.PostJSON(ctx, "/api/documents/render", body, &resp); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if jsonOut {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(resp.HTML)
	if len(resp.References) > 0 {
		cmd.Println()
		cmd.Println("References:")
		for _, ref := range resp.References {
			cmd.Printf("  %s %s %q\n", ref.Type, ref.ID, refcodec.PlainLabel(ref))
		}
	}
	return nil
}
