package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/starford/passport/internal"
	"github.com/starford/passport/internal/apperr"
	"github.com/starford/passport/internal/cliview"
	"github.com/starford/passport/internal/mcpserver"
	"github.com/starford/passport/internal/models"
	"github.com/starford/passport/internal/visitlog"
)

// openCore loads the config and the visit log for a one-shot command.
// Logs go to stderr so stdout stays clean for command output.
func openCore(ctx context.Context, cmd *cli.Command, adjust func(*internal.Config)) (*internal.Core, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	logger := internal.NewLogger(cfg.App, os.Stderr)
	slog.SetDefault(logger)

	core, err := internal.Open(ctx, cfg, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	return core, logger, nil
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "country", Usage: "Comma separated ISO2 or ISO3 codes"},
		&cli.StringFlag{Name: "min-rating", Usage: "Lowest rating, inclusive"},
		&cli.StringFlag{Name: "max-rating", Usage: "Highest rating, inclusive"},
		&cli.StringFlag{Name: "from", Usage: "First visit date, YYYY-MM-DD"},
		&cli.StringFlag{Name: "to", Usage: "Last visit date, YYYY-MM-DD"},
	}
}

// queryFromFlags builds a filter from the flags of filterFlags.
func queryFromFlags(cmd *cli.Command) (visitlog.Query, error) {
	var q visitlog.Query
	for _, code := range strings.Split(cmd.String("country"), ",") {
		if code = strings.TrimSpace(code); code != "" {
			q.Countries = append(q.Countries, code)
		}
	}

	minS, maxS := cmd.String("min-rating"), cmd.String("max-rating")
	if minS != "" || maxS != "" {
		rg := visitlog.Range{Min: models.MinRating, Max: models.MaxRating}
		for _, p := range []struct {
			flag, val string
			dst       *float64
		}{{"min-rating", minS, &rg.Min}, {"max-rating", maxS, &rg.Max}} {
			if p.val == "" {
				continue
			}
			f, err := strconv.ParseFloat(p.val, 64)
			if err != nil {
				return q, fmt.Errorf("--%s: %q is not a number", p.flag, p.val)
			}
			*p.dst = f
		}
		q.Rating = &rg
	}

	var dates visitlog.DateRange
	for _, p := range []struct {
		flag string
		dst  *models.Date
	}{{"from", &dates.From}, {"to", &dates.To}} {
		s := cmd.String(p.flag)
		if s == "" {
			continue
		}
		d, err := models.ParseDate(s)
		if err != nil {
			return q, fmt.Errorf("--%s: %w", p.flag, err)
		}
		*p.dst = d
	}
	if !dates.From.IsZero() || !dates.To.IsZero() {
		q.Dates = &dates
	}
	return q, nil
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write visits as CSV",
		Flags: append(filterFlags(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file, - for stdout",
				Value:   "-",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			q, err := queryFromFlags(cmd)
			if err != nil {
				return err
			}
			core, _, err := openCore(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer core.Close()

			return exportTo(ctx, core, q, cmd.String("output"))
		},
	}
}

// exportTo writes the filtered visits to path, or stdout for "-" or "".
// A file that cannot be written or closed is reported as an IOError.
func exportTo(ctx context.Context, core *internal.Core, q visitlog.Query, path string) error {
	if path == "-" || path == "" {
		return core.Service.Export(ctx, os.Stdout, q)
	}
	f, err := os.Create(path)
	if err != nil {
		return &apperr.IOError{Op: "export", Path: path, Err: err}
	}
	if err := core.Service.Export(ctx, f, q); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return &apperr.IOError{Op: "export", Path: path, Err: err}
	}
	return nil
}

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Print the KPI panel and per-country breakdown",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			core, _, err := openCore(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer core.Close()

			st, err := core.Service.Stats(ctx)
			if err != nil {
				return err
			}
			return cliview.Summary(os.Stdout, st.Summary, st.Countries, st.Rejected, time.Now())
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check every row of the visit log and list the rejected ones",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			core, _, err := openCore(ctx, cmd, func(cfg *internal.Config) {
				// Report every bad row rather than stopping at the first.
				cfg.Data.Strict = false
				cfg.Data.CreateIfMissing = false
			})
			if err != nil {
				return err
			}
			defer core.Close()

			snap := core.Service.Snapshot()
			fmt.Printf("%d visits, %d rejected\n", len(snap.Visits), len(snap.Rejected))
			if len(snap.Rejected) == 0 {
				return nil
			}
			fmt.Println(cliview.Rejected(snap.Rejected))
			return cli.Exit("", 1)
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			core, logger, err := openCore(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer core.Close()

			logger.Info("MCP server starting on stdio")
			return mcpserver.New(core.Service, version).ServeStdio()
		},
	}
}
