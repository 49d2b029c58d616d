package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/nexalabs/nexamon/client"
)

func apiClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), nil, nil)
}

func jqFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "jq",
		Usage: "jq filter expression applied to the JSON output",
	}
}

// printJSON renders v as indented JSON, optionally filtered through a jq
// expression first.
func printJSON(v interface{}, jqExpr string) error {
	if jqExpr == "" {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	query, err := gojq.Parse(jqExpr)
	if err != nil {
		return fmt.Errorf("failed to parse jq filter %q: %w", jqExpr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter %q: %w", jqExpr, err)
	}

	// gojq operates on plain maps and slices, so round-trip through JSON.
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal output: %w", err)
	}

	iter := code.Run(doc)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := result.(error); isErr {
			return fmt.Errorf("jq filter error: %w", err)
		}
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal jq result: %w", err)
		}
		fmt.Println(string(out))
	}
	return nil
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the monitor's current status",
		Flags: []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			status, err := apiClient(c).Status(c.Context)
			if err != nil {
				return err
			}
			return printJSON(status, c.String("jq"))
		},
	}
}

func logsCommand() *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Show recent log entries from the monitor",
		Flags: []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			logs, err := apiClient(c).Logs(c.Context)
			if err != nil {
				return err
			}
			return printJSON(logs, c.String("jq"))
		},
	}
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Start the scan loop on a running instance",
		Action: func(c *cli.Context) error {
			if err := apiClient(c).Start(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "monitor started")
			return nil
		},
	}
}

func stopCommand() *cli.Command {
	return &cli.Command{
		Name:  "stop",
		Usage: "Stop the scan loop on a running instance (takes effect between ticks)",
		Action: func(c *cli.Context) error {
			if err := apiClient(c).Stop(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "monitor stopped")
			return nil
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show the active configuration (secrets redacted)",
		Flags: []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := apiClient(c).Config(c.Context)
			if err != nil {
				return err
			}
			return printJSON(cfg, c.String("jq"))
		},
	}
}

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Run an amount through the redistribution engine without submitting",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:     "amount",
				Usage:    "Incoming transfer amount in minor units",
				Required: true,
			},
			jqFlag(),
		},
		Action: func(c *cli.Context) error {
			sim, err := apiClient(c).Simulate(c.Context, c.Uint64("amount"))
			if err != nil {
				return err
			}
			return printJSON(sim, c.String("jq"))
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent redistribution history",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of records to return",
				Value: 50,
			},
			jqFlag(),
		},
		Action: func(c *cli.Context) error {
			records, err := apiClient(c).Redistributions(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}
			return printJSON(records, c.String("jq"))
		},
	}
}
