package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/KaramelBytes/salesloom-cli/internal/ai"
	"github.com/KaramelBytes/salesloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model catalog and pricing",
	Example: `  salesloom models show
  salesloom models show --json
  salesloom models sync --file ./models.json
  salesloom models fetch --url https://example.com/models.json --output models.json`,
}

var modelsShowJSON bool

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printCatalog(cmd.OutOrStdout(), modelsShowJSON)
	},
}

var syncPath string

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge model catalog/pricing from a JSON file and show the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		ai.MergeCatalog(m)
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Merged %d model(s) from %s\n", len(m), syncPath)
		return printCatalog(cmd.OutOrStdout(), false)
	},
}

var (
	fetchURL    string
	fetchOutput string
)

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch model catalog/pricing JSON from a URL and merge it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if fetchURL == "" {
			return fmt.Errorf("--url is required")
		}
		client := &http.Client{Timeout: 20 * time.Second}
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, fetchURL, nil)
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			return fmt.Errorf("fetch: unexpected status %s: %s", resp.Status, string(b))
		}
		var m map[string]ai.ModelInfo
		if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		for k, v := range m {
			if v.Name == "" {
				v.Name = k
				m[k] = v
			}
		}
		if fetchOutput != "" {
			data, err := utils.PrettyJSON(m)
			if err != nil {
				return fmt.Errorf("marshal: %w", err)
			}
			if err := utils.SafeWriteFile(fetchOutput, data); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved catalog to %s\n", fetchOutput)
		}
		ai.MergeCatalog(m)
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Merged %d fetched model(s)\n", len(m))
		return nil
	},
}

func printCatalog(w io.Writer, asJSON bool) error {
	cat := ai.Catalog()
	if asJSON {
		data, err := utils.PrettyJSON(cat)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}
	current := ""
	if cfg != nil {
		current = cfg.Model
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tMODEL\tCONTEXT\tIN $/1K\tOUT $/1K")
	for _, mi := range cat {
		mark := ""
		if mi.Name == current {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.5f\t%.5f\n", mark, mi.Name, mi.ContextTokens, mi.InputPerK, mi.OutputPerK)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsSyncCmd)
	modelsCmd.AddCommand(modelsFetchCmd)

	modelsShowCmd.Flags().BoolVar(&modelsShowJSON, "json", false, "print the catalog as JSON")
	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
	modelsFetchCmd.Flags().StringVar(&fetchURL, "url", "", "URL to JSON catalog file")
	modelsFetchCmd.Flags().StringVar(&fetchOutput, "output", "", "optional path to save the fetched JSON")
}
