package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"qircuitsim/internal/circuit"
	"qircuitsim/internal/format"
	"qircuitsim/internal/tui"
)

// errSimulationFailed is returned after an error body has been written, so
// the process exits non-zero without repeating the message.
var errSimulationFailed = errors.New("simulation failed")

func seedFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:  "seed",
		Usage: "seed for measurement and sampling (default: engine.seed, else random)",
	}
}

func runCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "simulate a JSON request read from a file or stdin",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "request file, - for stdin", Value: "-"},
			seedFlag(),
			&cli.BoolFlag{Name: "pretty", Usage: "indent the JSON response"},
		},
		Action: func(c *cli.Context) error {
			body, err := readInput(c, c.String("in"))
			if err != nil {
				return err
			}
			if c.IsSet("seed") {
				body, err = withSeed(body, c.Int64("seed"))
				if err != nil {
					return err
				}
			}

			resp := e.service.Handle(c.Context, body)
			if err := writeJSON(c.App.Writer, resp, c.Bool("pretty")); err != nil {
				return err
			}
			if resp.Error != "" {
				return errSimulationFailed
			}
			return nil
		},
	}
}

func qasmCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "qasm",
		Usage:     "simulate an OpenQASM 2.0 file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "shots", Aliases: []string{"s"}, Usage: "sample this many runs instead of computing the exact state"},
			seedFlag(),
			&cli.BoolFlag{Name: "table", Aliases: []string{"t"}, Usage: "print a table instead of JSON"},
			&cli.BoolFlag{Name: "all", Usage: "include zero-probability rows in the table"},
			&cli.BoolFlag{Name: "request", Usage: "print the equivalent JSON request and exit"},
		},
		Action: func(c *cli.Context) error {
			circ, err := loadQASM(c)
			if err != nil {
				return err
			}
			if c.Bool("request") {
				return writeJSON(c.App.Writer, circuit.Request{Circuit: circ.Wire(), Shots: c.Int("shots")}, true)
			}

			var seed *int64
			if c.IsSet("seed") {
				v := c.Int64("seed")
				seed = &v
			}
			res, err := e.service.SimulateCircuit(c.Context, circ, c.Int("shots"), seed)
			if err != nil {
				return err
			}

			if c.Bool("table") {
				out, err := format.Table(res, c.Bool("all"))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.App.Writer, out)
				return err
			}
			resp, err := format.NewResponse(res)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, resp, true)
		},
	}
}

func exportCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "convert the circuit of a JSON request to OpenQASM 2.0",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "request file, - for stdin", Value: "-"},
			&cli.BoolFlag{Name: "by-step", Usage: "order gates by their step field instead of array order"},
		},
		Action: func(c *cli.Context) error {
			body, err := readInput(c, c.String("in"))
			if err != nil {
				return err
			}
			req, err := circuit.DecodeRequest(body)
			if err != nil {
				return err
			}
			circ, err := req.Circuit.Build()
			if err != nil {
				return err
			}
			if err := circ.Validate(e.cfg.Engine.MaxQubits); err != nil {
				return err
			}
			if c.Bool("by-step") {
				circ = circ.SortedByStep()
			}
			_, err = io.WriteString(c.App.Writer, circ.ToQASM())
			return err
		},
	}
}

func inspectCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "step through a circuit interactively",
		ArgsUsage: "FILE (.qasm or .json request)",
		Flags:     []cli.Flag{seedFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("inspect: expected exactly one FILE argument")
			}
			path := c.Args().First()
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			var circ *circuit.Circuit
			if strings.EqualFold(filepath.Ext(path), ".json") || bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
				req, err := circuit.DecodeRequest(data)
				if err != nil {
					return err
				}
				if circ, err = req.Circuit.Build(); err != nil {
					return err
				}
			} else if circ, err = circuit.ParseQASM(string(data)); err != nil {
				return err
			}

			seed := e.cfg.Engine.Seed
			if c.IsSet("seed") {
				v := c.Int64("seed")
				seed = &v
			}
			snaps, err := e.engine.Trace(c.Context, circ, seed)
			if err != nil {
				return err
			}
			return tui.Run(circ, snaps)
		},
	}
}

func loadQASM(c *cli.Context) (*circuit.Circuit, error) {
	if c.NArg() != 1 {
		return nil, fmt.Errorf("%s: expected exactly one FILE argument", c.Command.Name)
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return nil, err
	}
	return circuit.ParseQASM(string(data))
}

func readInput(c *cli.Context, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(c.App.Reader)
	}
	return os.ReadFile(path)
}

// withSeed sets the top-level "seed" field of a JSON request, keeping every
// other field as sent.
func withSeed(body []byte, seed int64) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		// Leave malformed input for the service to report.
		return body, nil
	}
	raw, err := json.Marshal(seed)
	if err != nil {
		return nil, err
	}
	fields["seed"] = raw
	return json.Marshal(fields)
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
