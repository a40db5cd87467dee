package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	driftdb "github.com/driftdb/driftdb-go"
	"github.com/driftdb/driftdb-go/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "driftctl",
	Short:         "DriftDB command line client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var flags struct {
	configPath string
	addr       string
	user       string
	password   string
	database   string
}

func main() {
	logging.ConfigureRuntime()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "driftctl: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to driftctl.toml")
	pf.StringVar(&flags.addr, "addr", "", "server address host:port")
	pf.StringVar(&flags.user, "user", "", "user name")
	pf.StringVar(&flags.password, "password", "", "password")
	pf.StringVar(&flags.database, "database", "", "default database for queries")

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Connect, authenticate, and report the server version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(cmd.Context())
		},
	}

	runCmd := &cobra.Command{
		Use:   "run <term-json>",
		Short: "Send one wire-format query term and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), args[0])
		},
	}

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive shell sending wire-format query terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd.Context())
		},
	}

	rootCmd.AddCommand(pingCmd, runCmd, replCmd)
}

func connect(ctx context.Context) (*driftdb.Connection, error) {
	opts, err := resolveConnectOpts()
	if err != nil {
		return nil, err
	}
	return driftdb.Connect(ctx, opts)
}

func runPing(ctx context.Context) error {
	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.NoreplyWait(ctx); err != nil {
		return err
	}
	fmt.Printf("ok: server %s\n", conn.ServerVersion())
	return nil
}

func runQuery(ctx context.Context, rawTerm string) error {
	if !json.Valid([]byte(rawTerm)) {
		return fmt.Errorf("query term is not valid JSON")
	}
	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	result, err := conn.RunRaw(ctx, json.RawMessage(rawTerm), driftdb.RunOpts{})
	if err != nil {
		return err
	}
	return printResult(ctx, os.Stdout, result)
}

// printResult renders an atom as one JSON document and a cursor as one
// JSON document per line in arrival order.
func printResult(ctx context.Context, out *os.File, result any) error {
	enc := json.NewEncoder(out)
	cursor, ok := result.(*driftdb.Cursor)
	if !ok {
		return enc.Encode(result)
	}
	defer cursor.Close()
	for {
		item, err := cursor.Next(ctx)
		if err != nil {
			if err == driftdb.ErrCursorEnd {
				return nil
			}
			return err
		}
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
}
