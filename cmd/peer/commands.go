package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/DoyleJ11/ghost-dash/internal/engine"
)

var errUsage = errors.New("usage: start | charge [slot] | release X Y [slot] | ghost [slot] | param NAME VALUE | params | state | quit")

type verb int

const (
	cmdStart verb = iota
	cmdCharge
	cmdRelease
	cmdGhost
	cmdParam
	cmdParams
	cmdState
	cmdQuit
)

type command struct {
	verb verb
	// slot is set when the line names one; otherwise the peer's own slot is used
	slot   *engine.Slot
	target engine.Vec2
	param  string
	value  float64
}

func parseSlot(s string) (*engine.Slot, error) {
	var slot engine.Slot
	switch strings.ToLower(s) {
	case "blue":
		slot = engine.SlotBlue
	case "red":
		slot = engine.SlotRed
	default:
		return nil, fmt.Errorf("unknown slot %q", s)
	}
	return &slot, nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return v, nil
}

// parseCommand reads one stdin line.
func parseCommand(line string) (command, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return command{}, errUsage
	}

	var (
		cmd  command
		rest []string
		err  error
	)
	switch strings.ToLower(f[0]) {
	case "start":
		cmd.verb = cmdStart
	case "charge":
		cmd.verb, rest = cmdCharge, f[1:]
	case "ghost":
		cmd.verb, rest = cmdGhost, f[1:]
	case "release":
		if len(f) < 3 {
			return command{}, errUsage
		}
		cmd.verb, rest = cmdRelease, f[3:]
		if cmd.target.X, err = parseFloat(f[1]); err != nil {
			return command{}, err
		}
		if cmd.target.Y, err = parseFloat(f[2]); err != nil {
			return command{}, err
		}
	case "param":
		if len(f) != 3 {
			return command{}, errUsage
		}
		cmd.verb, cmd.param = cmdParam, f[1]
		if cmd.value, err = parseFloat(f[2]); err != nil {
			return command{}, err
		}
		return cmd, nil
	case "params":
		cmd.verb = cmdParams
	case "state":
		cmd.verb = cmdState
	case "quit", "exit":
		cmd.verb = cmdQuit
	default:
		return command{}, errUsage
	}

	switch len(rest) {
	case 0:
	case 1:
		if cmd.slot, err = parseSlot(rest[0]); err != nil {
			return command{}, err
		}
	default:
		return command{}, errUsage
	}
	return cmd, nil
}
