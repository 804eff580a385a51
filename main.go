package main

import (
	"fmt"
	"os"
	"time"

	"github.com/LeeDigitalWorks/s3abuffer/cmd"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/env"

	"github.com/getsentry/sentry-go"
)

func main() {
	err := sentry.Init(sentry.ClientOptions{
		SampleRate:  1.0,
		Release:     "s3abuffer@" + cmd.Version,
		Environment: env.Current(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentry.Init: %v", err)
	}

	code := cmd.Execute()

	// Flush buffered events before the program terminates.
	sentry.Flush(2 * time.Second)
	os.Exit(code)
}
