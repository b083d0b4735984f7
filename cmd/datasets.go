package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/salesloom-cli/internal/dataset"
	"github.com/spf13/cobra"
)

var (
	dsSummary bool
	dsHead    int
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the datasets found in the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		coll, err := dataset.Load(cmd.Context(), c.DataDir, dataset.Options{Logger: logger})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if dsSummary {
			fmt.Fprintln(out, dataset.Summary(coll))
			return nil
		}
		if coll.Len() == 0 {
			fmt.Fprintf(out, "No datasets found in %s\n", c.DataDir)
			return nil
		}
		for _, name := range coll.Names() {
			t, _ := coll.Get(name)
			fmt.Fprintf(out, "%s  (%s, %d rows x %d columns, shape: %s)\n", name, filepath.Base(t.Source), t.Rows(), len(t.Columns), t.Shape)
			if dsHead > 0 {
				fmt.Fprintln(out, t.Head(dsHead))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
	datasetsCmd.Flags().BoolVar(&dsSummary, "summary", false, "print the dataset summary given to the model")
	datasetsCmd.Flags().IntVar(&dsHead, "head", 3, "preview rows per dataset (0 to disable)")
}
