// Command winfrey-participant joins a hosted WinfreyEdit session: it
// subscribes, prints each added, changed or deleted line to standard output,
// and applies a small set of line-oriented commands read from standard
// input as cursor movements and edits. It has no terminal UI of its
// own — that collaborator is out of scope here — but it exercises the
// full client coordinator end to end.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/rs/zerolog"

	"github.com/AlexisGoodfellow/WinfreyEdit/internal/client"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/config"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/logging"
	"github.com/AlexisGoodfellow/WinfreyEdit/internal/transport"
)

// printingCallbacks is the minimal UI adapter: it prints a line each time
// the document model tells it something changed, rather than rendering a
// full screen.
type printingCallbacks struct{}

func (printingCallbacks) AddLine(pos int, text string, cursorCols []int) {
	fmt.Printf("+%d: %q\n", pos, text)
}

func (printingCallbacks) ChangeLine(pos int, text string, cursorCols []int) {
	fmt.Printf("~%d: %q\n", pos, text)
}

func (printingCallbacks) DeleteLine(pos int) {
	fmt.Printf("-%d\n", pos)
}

func main() {
	serverAddr := flag.String("server", "", "NATS server URL to join (overrides WINFREY_SERVER_ADDR)")
	interactive := flag.String("interactive", "", "interactive subject (overrides WINFREY_INTERACTIVE_SUBJECT)")
	broadcast := flag.String("broadcast", "", "broadcast subject (overrides WINFREY_BROADCAST_SUBJECT)")
	flag.Parse()

	cfg, err := config.LoadParticipantConfig()
	if err != nil {
		os.Stderr.WriteString("winfrey-participant: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *serverAddr != "" {
		cfg.ServerAddress = *serverAddr
	}
	if *interactive != "" {
		cfg.InteractiveSubject = *interactive
	}
	if *broadcast != "" {
		cfg.BroadcastSubject = *broadcast
	}
	if cfg.ServerAddress == "" {
		os.Stderr.WriteString("winfrey-participant: -server (or WINFREY_SERVER_ADDR) is required\n")
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:   logging.Level(cfg.LogLevel),
		Format:  logging.Format(cfg.LogFormat),
		Service: "winfrey-participant",
	})

	conn, err := transport.Dial(cfg.ServerAddress, transport.DefaultOptions(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	defer conn.Close()

	coord := client.New(client.Config{
		InteractiveSubject:   cfg.InteractiveSubject,
		BroadcastSubject:     cfg.BroadcastSubject,
		PollTimeout:          cfg.PollTimeout,
		ClockRefreshInterval: cfg.ClockRefreshInterval,
	}, conn, printingCallbacks{}, client.ZeroOffset{}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := coord.Subscribe(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to subscribe")
	}
	fmt.Printf("joined as %s\n", coord.MyID())

	go readCommands(ctx, coord, logger)

	<-ctx.Done()
	logger.Info().Msg("leaving session")
	_ = coord.Unsubscribe()
}

// readCommands translates simple stdin lines into cursor operations:
// "m <direction>" moves the cursor, anything else is inserted character
// by character. It is a stand-in for a real terminal UI, not one.
func readCommands(ctx context.Context, coord *client.Coordinator, logger zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Text()
		if rest, ok := strings.CutPrefix(line, "m "); ok {
			if err := coord.MoveCursor(strings.TrimSpace(rest)); err != nil {
				logger.Warn().Err(err).Msg("move_cursor failed")
			}
			continue
		}
		for _, r := range line {
			if err := coord.InsertChar(string(r)); err != nil {
				logger.Warn().Err(err).Msg("insert_char failed")
			}
		}
		if err := coord.InsertChar("\n"); err != nil {
			logger.Warn().Err(err).Msg("insert_char failed")
		}
	}
}
