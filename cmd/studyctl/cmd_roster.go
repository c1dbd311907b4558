package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"studyflow-backend/internal/ai"
	"studyflow-backend/internal/config"
)

func rosterCmd(cfg *config.Config) *cli.Command {
	var (
		file   string
		asJSON bool
	)
	return &cli.Command{
		Name:        "roster",
		Usage:       "Validate and print the model roster the server would use",
		Description: "Without --file the built-in roster is printed with GEMINI_MODEL moved to the front.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Usage:       "YAML roster file",
				Value:       cfg.RosterFile,
				Destination: &file,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print as JSON",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			r, err := resolveRoster(file, cfg.GeminiModel)
			if err != nil {
				return err
			}
			return printRoster(c.Root().Writer, r, asJSON)
		},
	}
}

func resolveRoster(file, preferred string) (*ai.Roster, error) {
	if file != "" {
		r, err := ai.LoadRoster(file)
		if err != nil {
			return nil, fmt.Errorf("roster %s: %w", file, err)
		}
		return r, nil
	}
	return ai.DefaultRoster().Prefer(preferred), nil
}

func printRoster(w io.Writer, r *ai.Roster, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r.Candidates())
	}
	for i, c := range r.Candidates() {
		mark := " "
		if c.Primary {
			mark = "*"
		}
		_, _ = fmt.Fprintf(w, "%d. %s %s (%s)\n", i+1, mark, c.Name, c.RateClass)
	}
	return nil
}
