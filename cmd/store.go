// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/logger"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/objstore"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/s3client"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/utils"

	"github.com/spf13/pflag"
)

// addStoreFlags registers the object store connection flags shared by the
// commands that talk to a bucket.
func addStoreFlags(f *pflag.FlagSet) {
	f.String("provider", string(objstore.ProviderS3), "Object store client ("+strings.Join(objstore.Providers(), ", ")+")")
	f.String("region", s3client.DefaultRegion, "Object store region")
	f.String("access_key_id", "", "Static access key (default credential chain when empty)")
	f.String("secret_access_key", "", "Static secret key")
	f.String("session_token", "", "Static session token")
	f.Duration("request_timeout", 5*time.Minute, "Timeout for each object store request")
	f.String("ca_file", "", "Additional CA certificate for the object store endpoint")
	f.Bool("insecure_skip_verify", false, "Skip TLS certificate verification")
}

// storeConfig builds the provider config from flags and the endpoint.
func storeConfig(fl *FlagLoader, endpoint string, tls, pathStyle bool) objstore.Config {
	return objstore.Config{
		Provider:           objstore.Provider(fl.String("provider")),
		Endpoint:           utils.EnsureScheme(endpoint, tls),
		Region:             fl.String("region"),
		AccessKeyID:        fl.String("access_key_id"),
		SecretAccessKey:    fl.String("secret_access_key"),
		SessionToken:       fl.String("session_token"),
		PathStyle:          pathStyle,
		TLS:                tls,
		CAFile:             utils.ResolvePath(fl.String("ca_file")),
		InsecureSkipVerify: fl.Bool("insecure_skip_verify"),
		Timeout:            fl.Duration("request_timeout"),
	}
}

// requireDurable rejects the memory provider for runs that write, since
// objects it accepts are gone when the process exits.
func requireDurable(cfg objstore.Config, dryRun bool) error {
	if cfg.Provider == objstore.ProviderMemory && !dryRun {
		return usageErrorf("provider %q does not persist objects and is only allowed with --dry-run", cfg.Provider)
	}
	return nil
}

func openStore(ctx context.Context, cfg objstore.Config) (objstore.Client, error) {
	client, err := objstore.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s object store: %w", cfg.Provider, err)
	}

	logger.Ctx(ctx).Info().
		Str("provider", string(client.Provider())).
		Str("endpoint", cfg.Endpoint).
		Str("region", cfg.Region).
		Bool("path_style", cfg.PathStyle).
		Msg("using endpoint")
	return client, nil
}
