// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/fragment"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/liveness"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/recovery"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/utils"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <buffer_dir> <wal_prefix>",
	Short: "List buffer fragments and how recover would treat them",
	Long: `Parse and classify every file in the buffer directory without contacting
the object store. Later parts are shown with the action recover would take if
a matching open upload exists.`,
	Args: exactArgs("buffer_dir", "wal_prefix"),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	f := inspectCmd.Flags()
	f.String("hostname", "", "Tablet server host name (default: this host)")
	f.Int("service_port", fragment.DefaultServicePort, "Tablet server port used in the WAL prefix")

	viper.BindPFlags(f)
}

// inspectRow is one line of the inspect table.
type inspectRow struct {
	File   string
	Part   int
	Key    string
	Class  fragment.Classification
	Size   int64
	Action string
	Err    error
}

func runInspect(cmd *cobra.Command, args []string) error {
	fl := NewFlagLoader(cmd)
	dir := utils.ResolvePath(args[0])
	host := fl.String("hostname")
	if host == "" {
		host = liveness.LocalHostname()
	}
	walPrefix := fragment.WALPrefix(args[1], host, fl.Int("service_port"))

	if err := utils.CheckDirectory(dir); err != nil {
		return fmt.Errorf("%w: %w", recovery.ErrInvalidBufferDir, err)
	}

	rows, err := inspectDir(dir, walPrefix)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "WAL prefix: %s\n\n", walPrefix)
	return printInspect(cmd.OutOrStdout(), rows)
}

func inspectDir(dir, walPrefix string) ([]inspectRow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", recovery.ErrLocalIO, err)
	}

	var rows []inspectRow
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		row := inspectRow{File: entry.Name()}
		if info, err := entry.Info(); err == nil {
			row.Size = info.Size()
		}

		name, err := fragment.Parse(entry.Name())
		if err != nil {
			row.Err = err
			rows = append(rows, row)
			continue
		}
		row.Part = name.PartNumber
		row.Key = name.Key
		row.Class = fragment.Classify(name.Key, walPrefix)
		row.Action, row.Err = recovery.Plan(name, row.Class)
		rows = append(rows, row)
	}
	return rows, nil
}

func printInspect(w io.Writer, rows []inspectRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tPART\tCLASS\tSIZE\tACTION\tKEY")

	var errs []error
	for _, r := range rows {
		action := r.Action
		if r.Err != nil {
			action = "ERROR: " + r.Err.Error()
			errs = append(errs, &recovery.FragmentError{File: filepath.Base(r.File), Key: r.Key, Op: "inspect", Err: r.Err})
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", r.File, r.Part, r.Class, humanize.Bytes(uint64(r.Size)), action, r.Key)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d fragments, %d need attention\n", len(rows), len(errs))
	return errors.Join(errs...)
}
