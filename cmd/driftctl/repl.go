package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	driftdb "github.com/driftdb/driftdb-go"
)

const replHistoryFile = ".driftctl_history"

// runRepl reads one wire-format query term per line and prints each
// result. `exit` or EOF leaves the shell.
func runRepl(ctx context.Context) error {
	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	fmt.Printf("connected: server %s\n", conn.ServerVersion())

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := replHistoryPath()
	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			_, _ = line.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer saveHistory(line, historyPath)

	for {
		input, err := line.Prompt("driftdb> ")
		if err != nil {
			if err == io.EOF || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}
		line.AppendHistory(input)

		if !json.Valid([]byte(input)) {
			fmt.Fprintln(os.Stderr, "not a valid JSON term")
			continue
		}
		result, err := conn.RunRaw(ctx, json.RawMessage(input), driftdb.RunOpts{})
		if err != nil {
			if errors.Is(err, driftdb.ErrConnectionClosed) {
				return err
			}
			// Query-level failures leave the connection usable.
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if err := printResult(ctx, os.Stdout, result); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func replHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, replHistoryFile)
}

func saveHistory(line *liner.State, path string) {
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}
