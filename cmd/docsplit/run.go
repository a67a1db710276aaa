package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dgallion1/docsplit/internal/contentgraph"
	"github.com/dgallion1/docsplit/internal/objectstore"
	"github.com/dgallion1/docsplit/internal/pipeline"
	"github.com/spf13/cobra"
)

type runOptions struct {
	dir           string
	buckets       []string
	prefix        string
	out           string
	concurrency   int
	region        string
	endpoint      string
	pathStyle     bool
	presignExpiry time.Duration
	verbose       bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Split every page of a directory or bucket and write JSONL records",
		Example: `  docsplit run --dir ./site --out records.jsonl
  docsplit run --bucket docs-prod --bucket docs-api --prefix production/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.dir, "dir", "", "directory laid out like a bucket")
	f.StringSliceVar(&opts.buckets, "bucket", nil, "S3 bucket to read (repeatable)")
	f.StringVar(&opts.prefix, "prefix", "production/", "only keys under this prefix")
	f.StringVar(&opts.out, "out", "", "write records here instead of stdout")
	f.IntVar(&opts.concurrency, "concurrency", 8, "documents transformed in parallel")
	f.StringVar(&opts.region, "region", os.Getenv("AWS_REGION"), "AWS region")
	f.StringVar(&opts.endpoint, "endpoint", os.Getenv("S3_ENDPOINT"), "S3-compatible endpoint")
	f.BoolVar(&opts.pathStyle, "path-style", false, "use path-style bucket addressing")
	f.DurationVar(&opts.presignExpiry, "presign-expiry", 15*time.Minute, "lifetime of presigned object URLs")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log per-document progress")
	cmd.MarkFlagsMutuallyExclusive("dir", "bucket")
	cmd.MarkFlagsOneRequired("dir", "bucket")
	return cmd
}

func runOnce(ctx context.Context, stdout, stderr io.Writer, opts runOptions) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	var src objectstore.Source
	if opts.dir != "" {
		src = objectstore.NewDirSource(opts.dir, opts.prefix)
	} else {
		s3src, err := objectstore.NewS3Source(ctx, objectstore.S3Config{
			Buckets:       opts.buckets,
			Prefix:        opts.prefix,
			Region:        opts.region,
			Endpoint:      opts.endpoint,
			PathStyle:     opts.pathStyle,
			PresignExpiry: opts.presignExpiry,
		}, log)
		if err != nil {
			return err
		}
		src = s3src
	}

	out := stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	job := pipeline.NewJob(opts.buckets)
	w := pipeline.NewWorker(contentgraph.NewJSONLSink(out), nil, log, opts.concurrency, pipeline.MaxRetries)
	w.Process(ctx, job, src)

	snap := job.Snapshot()
	for _, e := range snap.Progress.Errors {
		log.Warn("document error", "error", e)
	}
	log.Info("run finished",
		"status", snap.Status,
		"objects", snap.Progress.Objects,
		"pages", snap.Progress.Pages,
		"records", snap.Progress.Records,
		"skipped", snap.Progress.Skipped)

	switch snap.Status {
	case pipeline.StatusFailed:
		return errors.New("run failed")
	case pipeline.StatusPartial:
		// Records were written, but some documents broke the page
		// conventions and were left out.
		return fmt.Errorf("run partial: %d document errors", len(snap.Progress.Errors))
	}
	return nil
}
