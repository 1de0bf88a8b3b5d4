package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/urfave/cli/v3"

	"github.com/meigma/mcworld/registry"
)

func (a *app) pullCommand() *cli.Command {
	return &cli.Command{
		Name:      "pull",
		Usage:     "download a world archive from an OCI registry",
		ArgsUsage: "REF",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to `FILE` (- for stdout)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("pull: exactly one REF is required")
			}
			ref := cmd.Args().First()
			world, err := a.registryClient().Pull(ctx, ref)
			if err != nil {
				return fmt.Errorf("pull %s: %w", ref, err)
			}

			out := cmd.String("output")
			if out == "" {
				out = defaultOutput(ref, world.Manifest)
			}
			if out == "-" {
				_, err = a.stdout.Write(world.Bytes())
				return err
			}
			if err := os.WriteFile(out, world.Bytes(), 0o644); err != nil { //nolint:gosec // world archives are not secret
				return fmt.Errorf("pull %s: %w", ref, err)
			}
			a.logger.Info("pulled world", "ref", ref, "file", out, "digest", world.Layer.Digest.String())
			return nil
		},
	}
}

// defaultOutput names the pulled file after the layer title, falling back
// to the last repository path element.
func defaultOutput(ref string, m *registry.Manifest) string {
	if title := filepath.Base(m.Layer.Annotations[ocispec.AnnotationTitle]); title != "." && title != "/" && title != "" {
		return title
	}
	repo, _, _ := strings.Cut(ref, "@")
	if i := strings.LastIndex(repo, ":"); i > strings.LastIndex(repo, "/") {
		repo = repo[:i]
	}
	return path.Base(repo) + ".mcworld"
}

func (a *app) pushCommand() *cli.Command {
	return &cli.Command{
		Name:      "push",
		Usage:     "publish a world archive to an OCI registry",
		ArgsUsage: "REF FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "record the world's display `NAME`"},
			&cli.BoolFlag{Name: "no-verify", Usage: "skip extracting the archive before pushing"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("push: REF and FILE are required")
			}
			ref, file := cmd.Args().Get(0), cmd.Args().Get(1)

			if !cmd.Bool("no-verify") {
				ex, err := a.extractor()
				if err != nil {
					return err
				}
				if _, err := ex.ExtractFile(file); err != nil {
					return fmt.Errorf("push: %s is not a readable world: %w", file, err)
				}
			}
			data, err := os.ReadFile(file) //nolint:gosec // caller-supplied archive path
			if err != nil {
				return fmt.Errorf("push: %w", err)
			}

			opts := []registry.PushOption{registry.PushWithTitle(filepath.Base(file))}
			if name := cmd.String("name"); name != "" {
				opts = append(opts, registry.PushWithWorldName(name))
			}
			desc, err := a.registryClient().Push(ctx, ref, data, opts...)
			if err != nil {
				return fmt.Errorf("push %s: %w", ref, err)
			}
			fmt.Fprintln(a.stdout, desc.Digest)
			return nil
		},
	}
}
