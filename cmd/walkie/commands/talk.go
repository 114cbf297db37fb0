package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/groovydhruv/power-ups/pkg/audio/pcm"
	"github.com/groovydhruv/power-ups/pkg/cli"
	"github.com/groovydhruv/power-ups/pkg/walkie"
)

var talkFlags struct {
	user        string
	topic       string
	voice       string
	aiFirst     bool
	autoPlay    bool
	out         string
	micFile     string
	toneHz      float64
	maxRecord   time.Duration
	metricsAddr string
	noHistory   bool
	output      string
}

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Open an interactive voice session",
	Long: `Open a voice session with the backend of the current context.

Replies are written as raw 16-bit PCM to --out (use "-" for stdout and
pipe into a player). Recordings are read from --mic, a raw 16 kHz mono
16-bit PCM file or FIFO, or synthesized as a test tone.

Commands on stdin:
  r          start recording
  s          stop recording and send
  p <id>     replay a message
  u <url>    play a stored copy
  x          stop playback
  g <gain>   set the playback gain (1 = unchanged)
  l          list messages
  f          show a status frame
  q          quit`,
	RunE: runTalk,
}

func init() {
	f := talkCmd.Flags()
	f.StringVar(&talkFlags.user, "user", "", "user id (overrides context)")
	f.StringVar(&talkFlags.topic, "topic", "", "topic id (overrides context)")
	f.StringVar(&talkFlags.voice, "voice", "", "voice name (overrides context)")
	f.BoolVar(&talkFlags.aiFirst, "ai-first", false, "let the backend speak first")
	f.BoolVar(&talkFlags.autoPlay, "auto-play", true, "play replies as soon as they are playable")
	f.StringVarP(&talkFlags.out, "out", "o", "", "write played audio as raw PCM to this file (\"-\" for stdout)")
	f.StringVar(&talkFlags.micFile, "mic", "", "raw PCM input used for recordings")
	f.Float64Var(&talkFlags.toneHz, "tone", 440, "test tone frequency used when --mic is not set")
	f.DurationVar(&talkFlags.maxRecord, "max-record", 2*time.Minute, "stop recordings automatically after this long")
	f.StringVar(&talkFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.BoolVar(&talkFlags.noHistory, "no-history", false, "do not record message history")
	f.StringVar(&talkFlags.output, "output", "text", "event output: text or jsonl")
	rootCmd.AddCommand(talkCmd)
}

func runTalk(cmd *cobra.Command, args []string) error {
	c, err := CurrentContext()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := walkie.StartRequest{
		UserID:        firstNonEmpty(talkFlags.user, c.UserID),
		TopicID:       firstNonEmpty(talkFlags.topic, c.TopicID),
		VoiceName:     firstNonEmpty(talkFlags.voice, c.VoiceName),
		AISpeaksFirst: talkFlags.aiFirst || c.AISpeaksFirst,
		EnableBargeIn: c.BargeIn,
	}
	if req.UserID == "" || req.TopicID == "" {
		return fmt.Errorf("user and topic are required; set them on the context or pass --user/--topic")
	}

	bucket, err := openBucket(ctx, c)
	if err != nil {
		return err
	}
	out, closer, err := openOutput(talkFlags.out)
	if err != nil {
		return err
	}
	defer closer.Close()

	logs := cli.NewLogWriter(200)
	var logOut io.Writer = logs
	if verbose {
		logOut = io.MultiWriter(os.Stderr, logs)
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := newRegistry()
	player := pcm.NewPlayer(out, pcm.WithRealtime(true))
	opts := []walkie.Option{
		walkie.WithBlobStore(bucket),
		walkie.WithPlayer(player),
		walkie.WithCapture(newCapture()),
		walkie.WithAutoPlay(talkFlags.autoPlay),
		walkie.WithMaxRecordingDuration(talkFlags.maxRecord),
		walkie.WithMetrics(walkie.NewMetrics(reg)),
		walkie.WithLogger(walkie.SlogLogger(logger)),
	}
	if c.ConnectTimeout > 0 {
		opts = append(opts, walkie.WithConnectTimeout(time.Duration(c.ConnectTimeout)*time.Second))
	}
	if !talkFlags.noHistory {
		hist, err := openHistory(c)
		if err != nil {
			return err
		}
		defer hist.Close()
		opts = append(opts, walkie.WithHistory(hist))
	}

	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	session := walkie.NewSession(
		&walkie.HTTPNegotiator{BaseURL: c.BaseURL, Token: c.Token},
		&walkie.WebSocketDialer{Header: header},
		opts...,
	)
	defer session.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printEvents(session)
		return nil
	})
	if talkFlags.metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, talkFlags.metricsAddr, reg)
		})
	}

	if err := session.Start(gctx, req); err != nil {
		session.Close()
		g.Wait()
		return err
	}
	wctx, cancel := context.WithTimeout(gctx, 30*time.Second)
	err = session.WaitReady(wctx)
	cancel()
	if err != nil {
		session.Close()
		g.Wait()
		return err
	}
	if g := session.Grant(); g != nil && g.FirstMessage != "" {
		cli.PrintInfo("%s", g.FirstMessage)
	}

	con := &console{session: session, player: player, logs: logs}
	lines := readLines(os.Stdin)
	g.Go(func() error {
		defer session.Close()
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok || !con.run(gctx, line) {
					return nil
				}
			}
		}
	})
	return g.Wait()
}

// console executes stdin commands against a session.
type console struct {
	session *walkie.Session
	player  *pcm.Player
	logs    *cli.LogWriter
}

// run executes one command line. It returns false to quit.
func (c *console) run(ctx context.Context, line string) bool {
	s := c.session
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "":
	case "q", "quit":
		return false
	case "r":
		s.StartRecording(ctx)
	case "s":
		if info, err := s.StopRecording(ctx); err == nil && info != nil {
			cli.PrintSuccess("sent %s (%s)", info.ID, cli.FormatDuration(info.Duration))
		}
	case "p":
		s.Replay(ctx, arg)
	case "u":
		s.PlayURL(ctx, arg)
	case "x":
		s.StopPlayback()
	case "l":
		for _, line := range messageLines(s) {
			fmt.Println(line)
		}
	case "g":
		g, err := strconv.ParseFloat(arg, 32)
		if err != nil || g < 0 {
			cli.PrintWarning("gain must be a non-negative number, got %q", arg)
			break
		}
		c.player.SetGain(float32(g))
		cli.PrintInfo("gain %.2f", c.player.Gain())
	case "f":
		fmt.Fprintln(os.Stderr, c.statusFrame().Render(100, 30))
	default:
		cli.PrintWarning("unknown command %q", cmd)
	}
	return true
}

func messageLines(s *walkie.Session) []string {
	var lines []string
	for _, m := range s.Messages() {
		lines = append(lines, fmt.Sprintf("%-36s %-9s %-9s %3d chunks %8s %s",
			m.ID, m.Direction, m.Status, m.ChunkCount, cli.FormatBytes(int64(m.Size)), m.AudioURL))
	}
	return lines
}

func (c *console) statusFrame() cli.Frame {
	s := c.session
	status := s.State().String() + " / " + s.RecordState().String()
	if id, ok := s.Playing(); ok {
		status += " / playing " + id
	}
	title := "walkie"
	if g := s.Grant(); g != nil {
		title += " " + g.SessionID
	}
	return cli.Frame{
		Styles: cli.NewStyles(cli.DefaultTheme),
		Title:  title,
		Status: status,
		Sections: []cli.Section{
			{Label: "Messages", Content: func() []string { return messageLines(s) }},
			{Label: "Log", Content: c.logs.Lines},
		},
		Help: "r record  s send  p <id> replay  u <url> play  x stop  g <n> gain  l list  f status  q quit",
	}
}

func printEvents(s *walkie.Session) {
	styles := cli.NewStyles(cli.DefaultTheme)
	for ev := range s.Events() {
		if talkFlags.output == "jsonl" {
			rec := map[string]any{"type": ev.EventType(), "event": ev}
			if e, ok := ev.(walkie.ErrorEvent); ok {
				rec["error"] = e.Error()
			}
			cli.Output(rec, cli.OutputOptions{Format: cli.FormatJSONL, Writer: os.Stderr})
			continue
		}
		fmt.Fprintln(os.Stderr, styles.Event(ev))
	}
}

func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

func newCapture() walkie.Capture {
	f := pcm.L16Mono16K
	if talkFlags.micFile != "" {
		return &walkie.ReaderCapture{
			Format:   f,
			Realtime: true,
			Open: func(context.Context) (io.Reader, error) {
				return os.Open(talkFlags.micFile)
			},
		}
	}
	return &walkie.ReaderCapture{
		Format:   f,
		Realtime: true,
		Open: func(context.Context) (io.Reader, error) {
			return walkie.ToneReader(f, talkFlags.toneHz), nil
		},
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
