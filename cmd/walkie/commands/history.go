package commands

import (
	"github.com/spf13/cobra"

	"github.com/groovydhruv/power-ups/pkg/cli"
)

var historyFormat string

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show recorded message history",
	Long: `Without arguments, list the sessions with recorded messages.
With a session id, print that session's messages in arrival order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := CurrentContext()
		if err != nil {
			return err
		}
		hist, err := openHistory(c)
		if err != nil {
			return err
		}
		defer hist.Close()

		format, err := cli.ParseFormat(historyFormat)
		if err != nil {
			return err
		}
		opts := cli.OutputOptions{Format: format}
		if len(args) == 0 {
			ids, err := hist.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				cli.PrintInfo("No history for context %s", c.Name)
				return nil
			}
			return cli.Output(ids, opts)
		}

		recs, err := hist.List(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return cli.Output(recs, opts)
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "yaml", "output format: yaml, json or jsonl")
	rootCmd.AddCommand(historyCmd)
}
