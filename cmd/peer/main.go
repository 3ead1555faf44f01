// Command peer plays a match from the terminal, against another peer through
// the relay or with both slots driven locally.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/ghost-dash/internal/engine"
	"github.com/DoyleJ11/ghost-dash/internal/logging"
	"github.com/DoyleJ11/ghost-dash/internal/match"
	"github.com/DoyleJ11/ghost-dash/internal/peer"
	"github.com/DoyleJ11/ghost-dash/internal/types"
)

const frameRate = 60

type options struct {
	server string
	join   string
	local  bool
	rounds int
}

func main() {
	var opts options
	flag.StringVar(&opts.server, "server", "ws://localhost:3000/ws", "relay socket URL")
	flag.StringVar(&opts.join, "join", "", "game id to join; empty creates a new game")
	flag.BoolVar(&opts.local, "local", false, "drive both slots from this terminal, no relay")
	flag.IntVar(&opts.rounds, "rounds", match.DefaultMaxRounds, "rounds per game")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	log, err := logging.New(*level, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdin, os.Stdout, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	matchOpts := []match.Option{match.WithLogger(log), match.WithMaxRounds(opts.rounds)}

	var incoming <-chan types.ServerMessage
	if !opts.local {
		dctx, dcancel := context.WithTimeout(ctx, 5*time.Second)
		conn, err := peer.Dial(dctx, opts.server, log)
		dcancel()
		if err != nil {
			return err
		}
		defer conn.Close()
		incoming = conn.Incoming()
		matchOpts = append(matchOpts, match.WithSender(conn))

		var first types.ClientMessage = types.CreateGame{}
		if opts.join != "" {
			first = types.JoinGame{GameID: opts.join}
		}
		if err := conn.Send(first); err != nil {
			return err
		}
	}

	m := match.New(matchOpts...)
	lines := readLines(ctx, in)

	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()
	var last report

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-incoming:
			if !ok {
				return errors.New("connection to relay lost")
			}
			m.Handle(msg, time.Now())

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, err := parseCommand(line)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if cmd.verb == cmdQuit {
				return nil
			}
			if err := execute(m, cmd, time.Now(), out); err != nil {
				fmt.Fprintln(out, err)
			}

		case now := <-ticker.C:
			m.Tick(now)
		}

		last = last.print(m, out)
	}
}

// readLines feeds in line by line until it is exhausted or ctx ends.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func ownSlot(m *match.Context, cmd command) engine.Slot {
	if cmd.slot != nil {
		return *cmd.slot
	}
	if slot, ok := m.LocalSlot(); ok {
		return slot
	}
	return engine.SlotBlue
}

func execute(m *match.Context, cmd command, now time.Time, out io.Writer) error {
	switch cmd.verb {
	case cmdStart:
		return m.Start(now)
	case cmdCharge:
		return m.ChargeStart(ownSlot(m, cmd))
	case cmdRelease:
		return m.ChargeRelease(ownSlot(m, cmd), cmd.target)
	case cmdGhost:
		return m.ActivateGhost(ownSlot(m, cmd), now)
	case cmdParam:
		return m.SetParam(cmd.param, cmd.value)
	case cmdParams:
		vals := m.Params().Map()
		names := make([]string, 0, len(vals))
		for name := range vals {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%-15s %g\n", name, vals[name])
		}
	case cmdState:
		p := m.Params()
		for _, slot := range engine.Slots {
			e := m.Entity(slot)
			fmt.Fprintf(out, "%-4s pos=(%.1f,%.1f) vel=(%.2f,%.2f) dash=%.0f%% ghost=%t dashReady=%.0f%% ghostReady=%.0f%%\n",
				slot, e.Pos.X, e.Pos.Y, e.Vel.X, e.Vel.Y, e.DashPower*100, e.GhostActive,
				e.DashCooldownProgress(p)*100, e.GhostCooldownProgress(p)*100)
		}
	}
	return nil
}

// report is what the terminal last showed.
type report struct {
	status  string
	message string
	gameID  string
	state   match.State
}

func (r report) print(m *match.Context, out io.Writer) report {
	next := report{status: m.Status(), message: m.Message(), gameID: m.GameID(), state: m.State()}
	if next.gameID != r.gameID && next.gameID != "" {
		fmt.Fprintf(out, "game %s (%s)\n", next.gameID, m.Mode())
	}
	if next.status != r.status && next.status != "" {
		fmt.Fprintln(out, next.status)
	}
	if next.state.Phase == match.PhaseCountdown && next.state.Countdown != r.state.Countdown {
		fmt.Fprintf(out, "%d...\n", next.state.Countdown)
	}
	if next.message != r.message || next.state.Phase != r.state.Phase {
		fmt.Fprintf(out, "[%s] %s  blue %d : %d red\n", next.state.Phase, next.message, next.state.BlueScore, next.state.RedScore)
	}
	return next
}
