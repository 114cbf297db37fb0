package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/groovydhruv/power-ups/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage backend contexts",
	Long: `Manage named backend contexts.

Examples:
  walkie config add dev --base-url http://localhost:8080 --user u1 --topic daily
  walkie config use dev
  walkie config set dev storage.kind s3
  walkie config set dev storage.bucket walkie-audio
  walkie config list
  walkie config show dev`,
}

var addFlags struct {
	ctx     cli.Context
	storage cli.StorageConfig
}

var configAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		ctx := addFlags.ctx
		if addFlags.storage != (cli.StorageConfig{}) {
			st := addFlags.storage
			ctx.Storage = &st
		}
		if err := cfg.AddContext(args[0], &ctx); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q saved to %s", args[0], cfg.Path())
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context %q", args[0])
		return nil
	},
}

var configDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a context",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		return cfg.DeleteContext(args[0])
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <name> <key> <value>",
	Short: "Set one field of a context",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		ctx, err := cfg.ResolveContext(args[0])
		if err != nil {
			return err
		}
		if err := ctx.Set(args[1], args[2]); err != nil {
			return err
		}
		return cfg.Save()
	},
}

var configListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		names := cfg.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts configured.")
			fmt.Println("Create one with: walkie config add <name> --base-url <url>")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tBASE URL\tUSER\tTOPIC\tSTORAGE")
		for _, name := range names {
			ctx := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			storage := "local"
			if ctx.Storage != nil && ctx.Storage.Kind != "" {
				storage = ctx.Storage.Kind
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", current, name, ctx.BaseURL, ctx.UserID, ctx.TopicID, storage)
		}
		return w.Flush()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a context",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		name := contextName
		if len(args) == 1 {
			name = args[0]
		}
		ctx, err := cfg.ResolveContext(name)
		if err != nil {
			return err
		}
		shown := *ctx
		shown.Token = cli.MaskToken(shown.Token)
		return cli.Output(&shown, cli.OutputOptions{Format: cli.FormatYAML})
	},
}

func init() {
	f := configAddCmd.Flags()
	f.StringVar(&addFlags.ctx.BaseURL, "base-url", "", "voice backend URL")
	f.StringVar(&addFlags.ctx.Token, "token", "", "bearer token")
	f.StringVar(&addFlags.ctx.UserID, "user", "", "user id")
	f.StringVar(&addFlags.ctx.TopicID, "topic", "", "topic (power-up) id")
	f.StringVar(&addFlags.ctx.VoiceName, "voice", "", "voice name")
	f.BoolVar(&addFlags.ctx.AISpeaksFirst, "ai-first", false, "let the backend speak first")
	f.BoolVar(&addFlags.ctx.BargeIn, "barge-in", false, "allow interrupting replies")
	f.StringVar(&addFlags.storage.Kind, "storage", "", "storage kind: local, s3 or memory")
	f.StringVar(&addFlags.storage.Dir, "storage-dir", "", "local storage directory")
	f.StringVar(&addFlags.storage.Bucket, "bucket", "", "S3 bucket")
	f.StringVar(&addFlags.storage.Prefix, "prefix", "", "S3 key prefix")
	f.StringVar(&addFlags.storage.Region, "region", "", "S3 region")
	f.StringVar(&addFlags.storage.PublicBase, "public-base", "", "public URL of the storage root")
	configAddCmd.MarkFlagRequired("base-url")

	configCmd.AddCommand(configAddCmd, configUseCmd, configDeleteCmd, configSetCmd, configListCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
