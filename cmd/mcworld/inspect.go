package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/mcworld"
	mchttp "github.com/meigma/mcworld/http"
)

const ociScheme = "oci://"

func (a *app) inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "list the files and store keys of world archives",
		ArgsUsage: "ARCHIVE...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print results as JSON, one line per archive"},
			&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Usage: "inspect up to `N` archives at once"},
			&cli.BoolFlag{Name: "lazy", Usage: "read oci:// archives with range requests instead of downloading"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			archives := cmd.Args().Slice()
			if len(archives) == 0 {
				return fmt.Errorf("inspect: at least one ARCHIVE is required")
			}
			jobs := a.cfg.Jobs
			if cmd.IsSet("jobs") {
				jobs = cmd.Int("jobs")
			}
			if jobs < 1 {
				return fmt.Errorf("inspect: --jobs must be at least 1")
			}

			results, err := a.inspectAll(ctx, archives, jobs, cmd.Bool("lazy"))
			if err != nil {
				return err
			}
			for i, res := range results {
				if cmd.Bool("json") {
					if err := writeJSON(a.stdout, res); err != nil {
						return err
					}
					continue
				}
				if i > 0 {
					fmt.Fprintln(a.stdout)
				}
				writeText(a.stdout, archives[i], res)
			}
			return nil
		},
	}
}

// inspectAll extracts every archive with at most jobs in flight and returns
// results in argument order. The first failure cancels the rest.
func (a *app) inspectAll(ctx context.Context, archives []string, jobs int, lazy bool) ([]*mcworld.Result, error) {
	ex, err := a.extractor()
	if err != nil {
		return nil, err
	}

	results := make([]*mcworld.Result, len(archives))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, name := range archives {
		g.Go(func() error {
			res, err := a.inspectOne(ctx, ex, name, lazy)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *app) inspectOne(ctx context.Context, ex *mcworld.Extractor, name string, lazy bool) (*mcworld.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.logger.Info("inspecting", "archive", name)

	switch {
	case strings.HasPrefix(name, "http://"), strings.HasPrefix(name, "https://"):
		src, err := mchttp.NewSource(ctx, name)
		if err != nil {
			return nil, err
		}
		return ex.ExtractFrom(src)
	case strings.HasPrefix(name, ociScheme):
		ref := strings.TrimPrefix(name, ociScheme)
		client := a.registryClient()
		if lazy {
			src, _, err := client.Open(ctx, ref)
			if err != nil {
				return nil, err
			}
			return ex.ExtractFrom(src)
		}
		world, err := client.Pull(ctx, ref)
		if err != nil {
			return nil, err
		}
		return ex.ExtractFrom(world)
	default:
		return ex.ExtractFile(name)
	}
}

func (a *app) inspectDirCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect-dir",
		Usage:     "list the files and store keys of an expanded world directory",
		ArgsUsage: "DIR",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the result as JSON"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("inspect-dir: exactly one DIR is required")
			}
			dir := cmd.Args().First()
			ex, err := a.extractor()
			if err != nil {
				return err
			}
			res, err := ex.ExtractPath(dir)
			if err != nil {
				return fmt.Errorf("inspect-dir %s: %w", dir, err)
			}
			if cmd.Bool("json") {
				return writeJSON(a.stdout, res)
			}
			writeText(a.stdout, dir, res)
			return nil
		},
	}
}
