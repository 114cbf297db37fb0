package commands

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/groovydhruv/power-ups/pkg/audio/pcm"
	"github.com/groovydhruv/power-ups/pkg/audio/wav"
	"github.com/groovydhruv/power-ups/pkg/cli"
)

var playFlags struct {
	out      string
	realtime bool
	gain     float32
}

var playCmd = &cobra.Command{
	Use:   "play <url|file>",
	Short: "Play a stored WAV message",
	Long: `Decode a WAV message and write it as raw PCM.

The argument is a local file or a URL. URLs under the context's storage
base are read from the store directly; other http(s) URLs are downloaded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		src := args[0]
		data, err := os.ReadFile(src)
		if err != nil {
			c, cerr := CurrentContext()
			if cerr != nil {
				return fmt.Errorf("read %s: %w", src, err)
			}
			bucket, berr := openBucket(ctx, c)
			if berr != nil {
				return berr
			}
			if data, err = bucket.Fetch(ctx, src); err != nil {
				return err
			}
			cli.PrintVerbose(verbose, "fetched %s", src)
		}

		clip, err := wav.Decode(data)
		if err != nil {
			return fmt.Errorf("decode %s: %w", src, err)
		}
		out, closer, err := openOutput(playFlags.out)
		if err != nil {
			return err
		}
		defer closer.Close()

		player := pcm.NewPlayer(out, pcm.WithRealtime(playFlags.realtime), pcm.WithGain(playFlags.gain))
		cli.PrintInfo("%s, %s, %s", clip.Format, cli.FormatDuration(clip.Duration()), cli.FormatBytes(int64(len(data))))
		return player.Play(ctx, clip, 0)
	},
}

func init() {
	playCmd.Flags().StringVarP(&playFlags.out, "out", "o", "-", "raw PCM destination (\"-\" for stdout, \"\" to discard)")
	playCmd.Flags().BoolVar(&playFlags.realtime, "realtime", false, "pace output at playback speed")
	playCmd.Flags().Float32Var(&playFlags.gain, "gain", 1, "linear output gain")
	rootCmd.AddCommand(playCmd)
}
