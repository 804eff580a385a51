// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/debug"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/logger"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/recovery"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/utils"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitError          = 1
	ExitUsage          = 2
	ExitServiceRunning = 3
	ExitRecoveryFailed = 4
	ExitUnsafe         = 5
)

var rootCmd = &cobra.Command{
	Use:   "s3abuffer",
	Short: "Recover S3A upload buffers left by a crashed Accumulo tablet server",
	Long: `s3abuffer inspects the local S3A block buffer directory of an Accumulo
tablet server after a crash and brings the object store back in line with it:
write-ahead log fragments are uploaded, compaction temp fragments are discarded
and their multipart uploads aborted.

Run it as an init step before the tablet server starts.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initialize,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&utils.ConfigurationFileDirectory, "config_dir", ".", "Directory for configuration files")
	f.String("log_level", "info", "Log level (trace, debug, info, warn, error)")
	f.String("metrics_file", "", "Write Prometheus metrics to this textfile when the command ends")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	viper.BindPFlags(f)
}

// initialize loads the config file and applies global settings before any
// subcommand runs.
func initialize(cmd *cobra.Command, args []string) error {
	if err := utils.LoadConfiguration("s3abuffer", false); err != nil {
		return err
	}

	fl := NewFlagLoader(cmd)
	level, err := zerolog.ParseLevel(fl.String("log_level"))
	if err != nil {
		return usageErrorf("invalid log level %q", fl.String("log_level"))
	}
	logger.SetLevel(level)
	return nil
}

// usageError marks bad arguments or flags.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// exactArgs is cobra.ExactArgs with a usage error and named arguments.
func exactArgs(names ...string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != len(names) {
			return usageErrorf("%s requires %d arguments (%v), got %d", cmd.Name(), len(names), names, len(args))
		}
		for i, a := range args {
			if a == "" {
				return usageErrorf("argument %s must not be empty", names[i])
			}
		}
		return nil
	}
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	var uerr *usageError
	var ferr *recovery.FragmentError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &uerr):
		return ExitUsage
	case errors.Is(err, recovery.ErrServiceRunning):
		return ExitServiceRunning
	case recovery.IsUnsafe(err):
		return ExitUnsafe
	case errors.As(err, &ferr),
		errors.Is(err, recovery.ErrRemoteOperation),
		errors.Is(err, recovery.ErrLocalIO),
		errors.Is(err, recovery.ErrInvalidBufferDir),
		errors.Is(err, recovery.ErrInvalidConfig):
		return ExitRecoveryFailed
	default:
		return ExitError
	}
}

// writeMetrics exports the registry if --metrics_file is set.
func writeMetrics(cmd *cobra.Command) {
	path := NewFlagLoader(cmd).String("metrics_file")
	if err := debug.WriteMetrics(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to write metrics file")
	}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	code := ExitCode(err)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code != ExitUsage {
			sentry.CaptureException(err)
		}
	}
	return code
}
