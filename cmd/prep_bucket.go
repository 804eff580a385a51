// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/bucketprep"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var prepBucketCmd = &cobra.Command{
	Use:   "prep-bucket <endpoint> <bucket> <force_delete> <tls> <path_style>",
	Short: "Check a bucket for an existing Accumulo deployment before init",
	Long: `Look for objects under the Accumulo volume and WAL prefixes.

Without force_delete the objects are counted and the count is written to the
count file, so an init container can decide whether to run accumulo init.
With force_delete every object found is deleted and the count written is 0.

The last three arguments are booleans (true/false).

Examples:
  s3abuffer prep-bucket minio:9000 accumulo false false true
  s3abuffer prep-bucket s3.amazonaws.com accumulo true true false --delete_rate=200
`,
	Args: exactArgs("endpoint", "bucket", "force_delete", "tls", "path_style"),
	RunE: runPrepBucket,
}

func init() {
	rootCmd.AddCommand(prepBucketCmd)

	f := prepBucketCmd.Flags()
	addStoreFlags(f)
	f.StringSlice("prefixes", bucketprep.DefaultPrefixes, "Key prefixes to check")
	f.String("count_file", bucketprep.DefaultCountFile, "File receiving the number of existing objects")
	f.Float64("delete_rate", 0, "Maximum deletes per second when force deleting (0 = unlimited)")

	viper.BindPFlags(f)
}

// PrepBucketOpts holds the resolved prep-bucket settings.
type PrepBucketOpts struct {
	Endpoint    string
	Bucket      string
	ForceDelete bool
	TLS         bool
	PathStyle   bool

	Prefixes   []string
	CountFile  string
	DeleteRate float64
}

func loadPrepBucketOpts(cmd *cobra.Command, args []string) (PrepBucketOpts, error) {
	fl := NewFlagLoader(cmd)
	opts := PrepBucketOpts{
		Endpoint:   args[0],
		Bucket:     args[1],
		Prefixes:   fl.StringSlice("prefixes"),
		CountFile:  fl.String("count_file"),
		DeleteRate: fl.Float64("delete_rate"),
	}

	bools := []struct {
		name string
		raw  string
		dst  *bool
	}{
		{"force_delete", args[2], &opts.ForceDelete},
		{"tls", args[3], &opts.TLS},
		{"path_style", args[4], &opts.PathStyle},
	}
	for _, b := range bools {
		v, err := strconv.ParseBool(b.raw)
		if err != nil {
			return opts, usageErrorf("argument %s must be true or false, got %q", b.name, b.raw)
		}
		*b.dst = v
	}
	return opts, nil
}

func runPrepBucket(cmd *cobra.Command, args []string) error {
	opts, err := loadPrepBucketOpts(cmd, args)
	if err != nil {
		return err
	}
	defer writeMetrics(cmd)

	ctx := cmd.Context()
	store, err := openStore(ctx, storeConfig(NewFlagLoader(cmd), opts.Endpoint, opts.TLS, opts.PathStyle))
	if err != nil {
		return err
	}
	defer store.Close()

	if err := bucketprep.RemoveCountFile(opts.CountFile); err != nil {
		return err
	}

	logger.Info().
		Str("bucket", opts.Bucket).
		Strs("prefixes", opts.Prefixes).
		Bool("force_delete", opts.ForceDelete).
		Msg("checking bucket for an existing deployment")

	result, err := bucketprep.Scan(ctx, store, bucketprep.Config{
		Bucket:      opts.Bucket,
		Prefixes:    opts.Prefixes,
		ForceDelete: opts.ForceDelete,
		DeleteRate:  opts.DeleteRate,
	})
	if err != nil {
		return err
	}

	if err := bucketprep.WriteCount(opts.CountFile, result); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Existing objects: %d\n", result.Count())
	if opts.ForceDelete {
		fmt.Fprintf(out, "Deleted objects:  %d\n", result.DeletedCount())
	}
	fmt.Fprintf(out, "Count file:       %s\n", opts.CountFile)
	return nil
}
