// Package main loads a course YAML file into the Postgres catalog so servers
// running with CATALOG_SOURCE=postgres pick it up on their next refresh.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"registrar/internal/catalog"
	"registrar/internal/catalog/models"
	"registrar/internal/catalog/source"
	"registrar/internal/platform/config"
	"registrar/internal/platform/database"
)

type syncer interface {
	Sync(ctx context.Context, courses []models.Course) (int64, error)
}

type options struct {
	file   string
	dryRun bool
}

func main() {
	if err := newRootCmd(connect).Execute(); err != nil {
		os.Exit(1)
	}
}

func connect(cfg config.DatabaseConfig) (syncer, func(), error) {
	pool, err := database.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	if pool == nil {
		return nil, nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return source.NewPostgres(pool.DB()), func() { _ = pool.Close() }, nil
}

func newRootCmd(open func(config.DatabaseConfig) (syncer, func(), error)) *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "catalogsync",
		Short: "Replace the Postgres course catalog with the contents of a YAML file",
		Long: `catalogsync validates a course file and writes it to the courses table in
one transaction. Courses absent from the file are deactivated, not deleted.`,
		Example:      `  DATABASE_URL=postgres://... catalogsync -f courses.yaml`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, open)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "courses.yaml", "course definition file")
	f.BoolVar(&opts.dryRun, "dry-run", false, "validate and print the courses without writing")
	return cmd
}

func run(cmd *cobra.Command, opts options, open func(config.DatabaseConfig) (syncer, func(), error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	courses, err := source.NewYAMLFile(opts.file).Load(ctx)
	if err != nil {
		return err
	}
	// Same validation the server applies on refresh.
	if _, err := catalog.NewStatic(courses); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, c := range courses {
		fmt.Fprintf(out, "%-24s capacity=%d opens=%s closes=%s\n",
			c.ID, c.Capacity, c.OpensAt.Format("2006-01-02T15:04Z07:00"), c.ClosesAt.Format("2006-01-02T15:04Z07:00"))
	}
	if opts.dryRun {
		fmt.Fprintf(out, "dry run: %d courses valid, nothing written\n", len(courses))
		return nil
	}

	s, closeFn, err := open(config.FromEnv().Database)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer closeFn()

	deactivated, err := s.Sync(ctx, courses)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "synced %d courses, deactivated %d\n", len(courses), deactivated)
	return nil
}
