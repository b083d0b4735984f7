package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/KaramelBytes/salesloom-cli/internal/pipeline"
	"github.com/spf13/cobra"
)

var chatShowPlan bool

const chatHelp = `Commands:
  /datasets   list loaded datasets
  /reload     reload the data directory
  /history    show the conversation so far
  /help       show this help
  /exit       quit`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive question-and-answer session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
		s, err := openSession(ctx, c, errOut)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Loaded %d dataset(s) from %s. Ask a question, or /help.\n", s.Collection().Len(), c.DataDir)

		in := bufio.NewScanner(cmd.InOrStdin())
		in.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for {
			fmt.Fprint(out, "> ")
			if !in.Scan() {
				fmt.Fprintln(out)
				return in.Err()
			}
			line := strings.TrimSpace(in.Text())
			switch line {
			case "":
				continue
			case "/exit", "/quit":
				return nil
			case "/help":
				fmt.Fprintln(out, chatHelp)
				continue
			case "/datasets":
				names := s.Collection().Names()
				if len(names) == 0 {
					fmt.Fprintln(out, "No data loaded.")
				}
				for _, n := range names {
					t, _ := s.Collection().Get(n)
					fmt.Fprintf(out, "- %s (%d rows, %s)\n", n, t.Rows(), t.Shape)
				}
				continue
			case "/reload":
				if err := s.Reload(ctx); err != nil {
					fmt.Fprintln(errOut, "✗ Error:", err)
					continue
				}
				fmt.Fprintf(out, "✓ Reloaded %d dataset(s)\n", s.Collection().Len())
				continue
			case "/history":
				for _, m := range s.History() {
					who := "You"
					if m.Role == pipeline.RoleAssistant {
						who = "Assistant"
					}
					fmt.Fprintf(out, "%s: %s\n", who, m.Content)
				}
				continue
			}
			if strings.HasPrefix(line, "/") {
				fmt.Fprintf(errOut, "⚠ Warning: unknown command %s (try /help)\n", line)
				continue
			}
			turn := s.Ask(ctx, line)
			printTurn(out, turn, chatShowPlan)
			if hint := providerHint(c, turn.Failure); hint != "" {
				fmt.Fprintln(errOut, "⚠ Warning:", hint)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().BoolVar(&chatShowPlan, "show-plan", false, "print the analysis plan before each answer")
}
