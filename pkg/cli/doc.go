// Package cli provides the configuration, output and terminal helpers of
// the walkie command.
//
// Configuration lives in ~/.walkie/config.yaml and holds named contexts,
// kubectl style: each context names a voice backend, the identity used
// with it and where durable audio copies are stored.
//
//	cfg, err := cli.LoadConfig()
//	ctx, err := cfg.ResolveContext("")
//
//	cli.Output(records, cli.OutputOptions{Format: cli.FormatJSON})
package cli
