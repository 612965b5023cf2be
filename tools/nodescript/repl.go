package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"

	"github.com/dueldanov/nodescript/internal/nodescript"
)

const (
	historyFile = ".nodescript_history"
	prompt      = "ns> "
	helpText    = `
Commands:
  Node.attr [NAME=VALUE ...]   evaluate an attribute with parameters
  :nodes                       list nodes
  :attrs Node                  list effective attributes of a node
  :params [Node]               list parameters of the unit or a node
  :reload                      recompile the unit from disk
  :help                        show this help
  :quit                        exit
`
)

func runREPL(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("repl needs exactly one FILE", 2)
	}

	s, done, err := newSession(c, c.Args().First())
	if err != nil {
		return err
	}
	defer done()

	unit, err := s.compile()
	if err != nil {
		return cli.Exit(nodescript.Report(err).String(), 1)
	}
	fmt.Printf("loaded %s, :help for commands\n", unit)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		var out []string
		for _, node := range unit.Nodes() {
			if strings.HasPrefix(node, line) {
				out = append(out, node+".")
			}
		}
		return out
	})

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		line, err := ln.Prompt(prompt)
		if err != nil {
			fmt.Println()
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		if strings.HasPrefix(line, ":") {
			var quit bool
			unit, quit = s.command(unit, line)
			if quit {
				break
			}
			continue
		}

		out, err := s.evalLine(line)
		if err != nil {
			fmt.Println(err)
			continue
		}
		fmt.Println(out)
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return nil
}

func (s *session) command(unit *nodescript.Unit, line string) (*nodescript.Unit, bool) {
	fields := strings.Fields(line)

	switch fields[0] {
	case ":quit", ":exit":
		return unit, true

	case ":help":
		fmt.Print(helpText)

	case ":nodes":
		fmt.Println(strings.Join(unit.Nodes(), " "))

	case ":attrs":
		if len(fields) < 2 {
			fmt.Println("usage: :attrs Node")
			break
		}
		attrs, err := unit.EffectiveAttributes(fields[1])
		if err != nil {
			fmt.Println(nodescript.Report(err))
			break
		}
		fmt.Println(strings.Join(attrs, " "))

	case ":params":
		params := unit.Params()
		if len(fields) > 1 {
			var err error
			if params, err = unit.NodeParams(fields[1]); err != nil {
				fmt.Println(nodescript.Report(err))
				break
			}
		}
		fmt.Println(strings.Join(params, " "))

	case ":reload":
		s.registry.Reset()
		reloaded, err := s.compile()
		if err != nil {
			fmt.Println(nodescript.Report(err))
			break
		}
		unit = reloaded
		fmt.Printf("reloaded %s\n", unit)

	default:
		fmt.Printf("unknown command %s, :help for commands\n", fields[0])
	}

	return unit, false
}

// evalLine evaluates "Node.attr [NAME=VALUE ...]".
func (s *session) evalLine(line string) (string, error) {
	fields := strings.Fields(line)

	node, attr, ok := strings.Cut(fields[0], ".")
	if !ok || node == "" || attr == "" {
		return "", fmt.Errorf("expected Node.attr, got %q", fields[0])
	}

	params, err := parseParams(fields[1:])
	if err != nil {
		return "", err
	}

	values, err := s.evaluate(node, []string{attr}, params)
	if err != nil {
		return nodescript.Report(err).String(), nil
	}
	return nodescript.Format(values[0]), nil
}
