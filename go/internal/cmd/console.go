package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mcdev12/pathduel/go/internal/duel"
)

const consoleHelp = `commands:
  ready | unready
  add <x> <y> | move <i> <x> <y> | remove <i> | method <linear|lagrange|spline>
  tower <type> <x> <y> | untower <x> <y>
  damage <n> | round
  event <tag> [json]
  status | help | quit
`

var errQuit = errors.New("quit")

// runConsole reads commands from in until quit, EOF or ctx is done. On EOF
// the process keeps the duel alive until it is signalled.
func runConsole(ctx context.Context, s *duel.Session, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprint(out, consoleHelp)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return nil
			}
			reply, err := execute(s, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if reply != "" {
				fmt.Fprintln(out, reply)
			}
		}
	}
}

// execute runs one console line against the session.
func execute(s *duel.Session, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		return strings.TrimRight(consoleHelp, "\n"), nil
	case "quit", "exit":
		return "", errQuit
	case "status":
		b, err := json.MarshalIndent(s.Snapshot(), "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	case "ready", "unready":
		if err := wantArgs(args, 0); err != nil {
			return "", err
		}
		return "ok", s.SetReady(cmd == "ready")
	case "add":
		nums, err := parseFloats(args, 2)
		if err != nil {
			return "", err
		}
		return "ok", s.AddPathPoint(nums[0], nums[1])
	case "move":
		if err := wantArgs(args, 3); err != nil {
			return "", err
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return "", fmt.Errorf("bad index %q", args[0])
		}
		nums, err := parseFloats(args[1:], 2)
		if err != nil {
			return "", err
		}
		return "ok", s.MovePathPoint(i, nums[0], nums[1])
	case "remove":
		ints, err := parseInts(args, 1)
		if err != nil {
			return "", err
		}
		return "ok", s.RemovePathPoint(ints[0])
	case "method":
		if err := wantArgs(args, 1); err != nil {
			return "", err
		}
		return "ok", s.SetPathMethod(strings.ToLower(args[0]))
	case "tower":
		if err := wantArgs(args, 3); err != nil {
			return "", err
		}
		ints, err := parseInts(args[1:], 2)
		if err != nil {
			return "", err
		}
		return "ok", s.PlaceTower(args[0], ints[0], ints[1])
	case "untower":
		ints, err := parseInts(args, 2)
		if err != nil {
			return "", err
		}
		return "ok", s.RemoveTower(ints[0], ints[1])
	case "damage":
		ints, err := parseInts(args, 1)
		if err != nil {
			return "", err
		}
		return "ok", s.ReportDamage(ints[0])
	case "round":
		if err := wantArgs(args, 0); err != nil {
			return "", err
		}
		return "ok", s.ReportRoundComplete()
	case "event":
		if len(args) == 0 {
			return "", fmt.Errorf("event needs a tag")
		}
		var data map[string]any
		if len(args) > 1 {
			if err := json.Unmarshal([]byte(strings.Join(args[1:], " ")), &data); err != nil {
				return "", fmt.Errorf("event data must be a JSON object: %w", err)
			}
		}
		return "ok", s.SendGameEvent(args[0], data)
	default:
		return "", fmt.Errorf("unknown command %q, try help", cmd)
	}
}

func wantArgs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	return nil
}

func parseFloats(args []string, n int) ([]float64, error) {
	if err := wantArgs(args, n); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", a)
		}
		out[i] = v
	}
	return out, nil
}

func parseInts(args []string, n int) ([]int, error) {
	if err := wantArgs(args, n); err != nil {
		return nil, err
	}
	out := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q", a)
		}
		out[i] = v
	}
	return out, nil
}
