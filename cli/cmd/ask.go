package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/arbelos-io/glean/cli/config"
	"github.com/arbelos-io/glean/cli/render"
	"github.com/arbelos-io/glean/cli/tui"
	"github.com/arbelos-io/glean/runtime"
	"github.com/arbelos-io/glean/stream"
	"github.com/arbelos-io/glean/types"
)

// Exit codes for ask.
const (
	exitSuccess  = 0
	exitFailed   = 1
	exitRejected = 2 // capacity gate refusal, caller may retry later
)

// AskCommand returns the ask command, the only command that contacts
// the database and the model.
func AskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a natural-language question against the configured database",
		ArgsUsage: "<question>",
		Flags: []cli.Flag{
			ConfigFlag,
			FormatFlag,
			RoleFlag,
			&cli.IntFlag{
				Name:  "row-cap",
				Usage: "Override the result row cap (clamped to limits.max_row_cap)",
			},
			&cli.BoolFlag{
				Name:  "stream",
				Usage: "Print progress events as JSON lines instead of a final answer",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show interactive progress while the run executes",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Show service metrics after the run",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the result table, print only the answer",
			},
		},
		Action: askAction,
	}
}

func askAction(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return cli.Exit("usage: glean ask <question>", exitRejected)
	}
	if c.Bool("stream") && c.Bool("tui") {
		return cli.Exit("--stream and --tui are mutually exclusive", exitRejected)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	svc, collector, closeAll, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	req := runtime.AskRequest{
		Question: question,
		Role:     c.String("role"),
		RowCap:   c.Int("row-cap"),
	}

	var outcome *types.RunOutcome
	switch {
	case c.Bool("tui"):
		outcome, err = askTUI(ctx, cancel, svc, req)
	case c.Bool("stream"):
		outcome, err = svc.AskStream(ctx, req, newLineSink(os.Stdout))
	default:
		outcome, err = svc.Ask(ctx, req)
	}
	if err != nil {
		return err
	}

	if c.Bool("stats") {
		defer func() { _ = showStats(c, collector) }()
	}

	return finishAsk(c, outcome)
}

// askTUI drives the run through a channel sink feeding the progress view.
func askTUI(ctx context.Context, cancel context.CancelFunc, svc *runtime.Service, req runtime.AskRequest) (*types.RunOutcome, error) {
	sink := stream.NewChannelSink(64)

	type runDone struct {
		outcome *types.RunOutcome
		err     error
	}
	doneCh := make(chan runDone, 1)
	go func() {
		outcome, err := svc.AskStream(ctx, req, sink)
		_ = sink.Close()
		doneCh <- runDone{outcome, err}
	}()

	if _, err := tui.RunAsk(req.Question, sink.C, cancel); err != nil {
		return nil, err
	}

	res := <-doneCh
	return res.outcome, res.err
}

// finishAsk renders the outcome and maps it to an exit code.
func finishAsk(c *cli.Context, outcome *types.RunOutcome) error {
	if outcome == nil {
		return cli.Exit("run produced no outcome", exitFailed)
	}

	if outcome.Failed() {
		code := exitFailed
		if outcome.Code == types.CodeCapacityExceeded {
			code = exitRejected
		}
		return cli.Exit(fmt.Sprintf("%s: %s", outcome.Code, outcome.Message), code)
	}

	// TUI and stream modes already showed progress; print the final
	// answer only for the plain path, plus the result table unless quiet.
	if !c.Bool("tui") && !c.Bool("stream") {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		if r.Format() == render.FormatTable {
			if outcome.Answer != "" {
				fmt.Println(outcome.Answer)
			}
			if outcome.Status == types.OutcomeDegraded {
				fmt.Fprintln(os.Stderr, "note: summarization unavailable, showing raw result")
			}
			if !c.Bool("quiet") && outcome.Result != nil {
				if err := r.RenderResult(outcome.Result); err != nil {
					return err
				}
			}
		} else {
			if err := r.Render(outcome); err != nil {
				return err
			}
		}
	}

	return cli.Exit("", exitSuccess)
}

// lineSink writes each envelope as one JSON line.
type lineSink struct {
	enc *json.Encoder
}

func newLineSink(w io.Writer) *lineSink {
	return &lineSink{enc: json.NewEncoder(w)}
}

func (s *lineSink) Emit(_ context.Context, event *types.EventEnvelope) error {
	return s.enc.Encode(event)
}

func (s *lineSink) Close() error { return nil }
