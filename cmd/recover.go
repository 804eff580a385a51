// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/fragment"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/liveness"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/logger"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/recovery"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/utils"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var recoverCmd = &cobra.Command{
	Use:   "recover <endpoint> <bucket> <buffer_dir> <wal_prefix>",
	Short: "Finish or discard the upload fragments of a crashed tablet server",
	Long: `Resolve every fragment in the S3A buffer directory against the bucket.

  write-ahead log, part one       uploaded as a standalone object
  write-ahead log, later part     uploaded as the final part of its open upload
  compaction temp, part one       deleted locally
  compaction temp, later part     open upload aborted

A fragment's local file is removed only after its remote action succeeded.
The command refuses to run while the tablet server port accepts connections.

Examples:
  # Recover a MinIO-backed tablet server buffer
  s3abuffer recover http://minio:9000 accumulo /var/lib/accumulo/s3a accumulo-wal \
    --provider=minio --path_style

  # See what would happen without touching anything
  s3abuffer recover s3.us-east-1.amazonaws.com accumulo /tmp/s3a accumulo-wal --dry-run
`,
	Args: exactArgs("endpoint", "bucket", "buffer_dir", "wal_prefix"),
	RunE: runRecover,
}

func init() {
	rootCmd.AddCommand(recoverCmd)

	f := recoverCmd.Flags()
	addStoreFlags(f)
	f.Bool("tls", false, "Use https when the endpoint has no scheme")
	f.Bool("path_style", false, "Use path-style bucket addressing")
	f.Bool("complete-on-last-part", true, "Complete the multipart upload after uploading a final part")
	f.String("hostname", "", "Tablet server host name (default: this host)")
	f.Int("service_port", fragment.DefaultServicePort, "Tablet server port used for the liveness probe and WAL prefix")
	f.Duration("probe_timeout", liveness.DefaultTimeout, "Liveness probe connect timeout")
	f.Bool("continue-on-error", false, "Attempt every fragment and report all failures")
	f.Bool("dry-run", false, "Log the planned action for each fragment without changing anything")
	f.Duration("timeout", 0, "Overall recovery timeout (0 disables)")

	viper.BindPFlags(f)
}

// RecoverOpts holds the resolved recover settings.
type RecoverOpts struct {
	Endpoint  string
	Bucket    string
	BufferDir string
	WALBase   string

	Hostname     string
	ServicePort  int
	ProbeTimeout time.Duration

	ContinueOnError bool
	DryRun          bool
	Timeout         time.Duration
}

func loadRecoverOpts(cmd *cobra.Command, args []string) RecoverOpts {
	fl := NewFlagLoader(cmd)
	opts := RecoverOpts{
		Endpoint:        args[0],
		Bucket:          args[1],
		BufferDir:       utils.ResolvePath(args[2]),
		WALBase:         args[3],
		Hostname:        fl.String("hostname"),
		ServicePort:     fl.Int("service_port"),
		ProbeTimeout:    fl.Duration("probe_timeout"),
		ContinueOnError: fl.Bool("continue-on-error"),
		DryRun:          fl.Bool("dry-run"),
		Timeout:         fl.Duration("timeout"),
	}
	if opts.Hostname == "" {
		opts.Hostname = liveness.LocalHostname()
	}
	return opts
}

func runRecover(cmd *cobra.Command, args []string) error {
	opts := loadRecoverOpts(cmd, args)
	fl := NewFlagLoader(cmd)
	defer writeMetrics(cmd)

	runID := uuid.NewString()
	ctx := logger.WithRun(cmd.Context(), runID)
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	prober := liveness.NewProber(opts.Hostname, opts.ServicePort, opts.ProbeTimeout)
	if prober.IsServiceRunning(ctx) {
		return fmt.Errorf("%w on %s, refusing to recover", recovery.ErrServiceRunning, prober.Addr)
	}

	cfg := recovery.Config{
		Bucket:          opts.Bucket,
		BufferDir:       opts.BufferDir,
		WALPrefix:       fragment.WALPrefix(opts.WALBase, opts.Hostname, opts.ServicePort),
		ContinueOnError: opts.ContinueOnError,
		DryRun:          opts.DryRun,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	storeCfg := storeConfig(fl, opts.Endpoint, fl.Bool("tls"), fl.Bool("path_style"))
	storeCfg.CompleteOnLastPart = fl.Bool("complete-on-last-part")
	if err := requireDurable(storeCfg, opts.DryRun); err != nil {
		return err
	}
	store, err := openStore(ctx, storeCfg)
	if err != nil {
		return err
	}
	defer store.Close()

	engine, err := recovery.NewEngine(cfg, store)
	if err != nil {
		return err
	}

	report, err := engine.Run(ctx)
	printReport(cmd.OutOrStdout(), runID, report)
	return err
}

func printReport(w io.Writer, runID string, r *recovery.Report) {
	if r == nil {
		return
	}

	title := "Recovery Summary"
	if r.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, "================")
	fmt.Fprintf(w, "Run ID:            %s\n", runID)
	fmt.Fprintf(w, "Files:             %d\n", r.FilesSeen)
	fmt.Fprintf(w, "Objects put:       %d\n", r.Put)
	fmt.Fprintf(w, "Final parts:       %d\n", r.FinalParts)
	fmt.Fprintf(w, "Uploads aborted:   %d\n", r.Aborted)
	fmt.Fprintf(w, "Discarded locally: %d\n", r.Discarded)
	fmt.Fprintf(w, "Failed:            %d\n", r.Failed)
	if r.DuplicateSessions > 0 {
		fmt.Fprintf(w, "Duplicate uploads: %d\n", r.DuplicateSessions)
	}
	fmt.Fprintf(w, "Bytes finalized:   %s\n", humanize.Bytes(uint64(r.BytesFinalized)))
	fmt.Fprintf(w, "Duration:          %s\n", r.Duration.Round(time.Millisecond))

	for _, o := range r.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "  FAILED %s: %v\n", o.File, o.Err)
		}
	}
}
