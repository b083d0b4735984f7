package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/salesloom-cli/internal/session"
	"github.com/KaramelBytes/salesloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

const chartWidth = 50

var (
	askJSON     bool
	askChartOut string
	askShowPlan bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question about the loaded datasets",
	Example: `  salesloom ask "What is the total revenue?"
  salesloom ask "Plot monthly revenue for 2022" --chart-out revenue.json
  salesloom ask "Top 5 categories by quantity" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return fmt.Errorf("question cannot be empty")
		}
		s, err := openSession(cmd.Context(), c, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		turn := s.Ask(cmd.Context(), question)

		if askChartOut != "" {
			if turn.Chart == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "⚠ Warning: no chart was produced; nothing written to", askChartOut)
			} else {
				data, err := utils.PrettyJSON(turn.Chart)
				if err != nil {
					return err
				}
				if err := utils.SafeWriteFile(askChartOut, data); err != nil {
					return fmt.Errorf("write chart: %w", err)
				}
				if !askJSON {
					fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote chart to %s\n", askChartOut)
				}
			}
		}
		if askJSON {
			data, err := utils.PrettyJSON(turn)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		} else {
			printTurn(cmd.OutOrStdout(), turn, askShowPlan)
		}
		if hint := providerHint(c, turn.Failure); hint != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "⚠ Warning:", hint)
		}
		return nil
	},
}

func printTurn(w io.Writer, turn session.Turn, showPlan bool) {
	if showPlan && turn.Plan != "" {
		fmt.Fprintf(w, "Plan:\n%s\n\n", turn.Plan)
	}
	fmt.Fprintln(w, turn.Answer)
	if turn.Chart != nil {
		fmt.Fprintln(w)
		fmt.Fprint(w, turn.Chart.RenderASCII(chartWidth))
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the turn (plan, result, answer, chart) as JSON")
	askCmd.Flags().StringVar(&askChartOut, "chart-out", "", "write the chart, if any, as JSON to this path")
	askCmd.Flags().BoolVar(&askShowPlan, "show-plan", false, "print the analysis plan before the answer")
}
