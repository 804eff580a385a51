// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/logger"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/utils"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func init() {
	Register(ProviderMinio, openMinio)
}

const minioListPageSize = 1000

// Minio implements Client on minio-go's low-level Core API.
type Minio struct {
	core               *minio.Core
	completeOnLastPart bool
}

func openMinio(_ context.Context, cfg Config) (Client, error) {
	host, secure, err := splitEndpoint(cfg.Endpoint, cfg.TLS)
	if err != nil {
		return nil, err
	}

	var creds *credentials.Credentials
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
			&credentials.FileAWSCredentials{},
		})
	}

	lookup := minio.BucketLookupAuto
	if cfg.PathStyle {
		lookup = minio.BucketLookupPath
	}

	transport, err := minio.DefaultTransport(secure)
	if err != nil {
		return nil, fmt.Errorf("create minio transport: %w", err)
	}
	tlsConfig, err := utils.LoadClientTLSConfig(cfg.CAFile, cfg.InsecureSkipVerify)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		transport.TLSClientConfig = tlsConfig
	}
	if cfg.Timeout > 0 {
		transport.ResponseHeaderTimeout = cfg.Timeout
	}

	core, err := minio.NewCore(host, &minio.Options{
		Creds:        creds,
		Secure:       secure,
		Transport:    transport,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Minio{core: core, completeOnLastPart: cfg.CompleteOnLastPart}, nil
}

// splitEndpoint strips a URL scheme from endpoint. An explicit scheme wins
// over the TLS flag.
func splitEndpoint(endpoint string, tls bool) (string, bool, error) {
	if endpoint == "" {
		return "", false, fmt.Errorf("minio provider requires an endpoint")
	}
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), tls, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}

func (m *Minio) Provider() Provider {
	return ProviderMinio
}

func (m *Minio) ListMultipartUploads(ctx context.Context, bucket string) ([]Upload, error) {
	var (
		uploads                 []Upload
		keyMarker, uploadMarker string
	)
	for {
		res, err := m.core.ListMultipartUploads(ctx, bucket, "", keyMarker, uploadMarker, "", minioListPageSize)
		if err != nil {
			return nil, fmt.Errorf("list multipart uploads: %w", err)
		}
		for _, u := range res.Uploads {
			uploads = append(uploads, Upload{
				Key:       u.Key,
				UploadID:  u.UploadID,
				Initiated: u.Initiated,
			})
		}
		if !res.IsTruncated {
			break
		}
		keyMarker = res.NextKeyMarker
		uploadMarker = res.NextUploadIDMarker
	}
	return uploads, nil
}

func (m *Minio) PutObject(ctx context.Context, bucket, key, path string) error {
	f, size, err := openForUpload(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := m.core.PutObject(ctx, bucket, key, f, size, "", "", minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (m *Minio) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, path string, last bool) error {
	f, size, err := openForUpload(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := m.core.PutObjectPart(ctx, bucket, key, uploadID, partNumber, f, size, minio.PutObjectPartOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchUpload" {
			return fmt.Errorf("upload part %d: %w: %w", partNumber, ErrNoSuchUpload, err)
		}
		return fmt.Errorf("upload part %d: %w", partNumber, err)
	}

	if !last || !m.completeOnLastPart {
		return nil
	}

	parts, err := m.listParts(ctx, bucket, key, uploadID)
	if err != nil {
		return err
	}
	if _, ok := parts[partNumber]; !ok {
		parts[partNumber] = part.ETag
	}

	complete := make([]minio.CompletePart, 0, len(parts))
	for n, etag := range parts {
		complete = append(complete, minio.CompletePart{PartNumber: n, ETag: etag})
	}
	sort.Slice(complete, func(i, j int) bool {
		return complete[i].PartNumber < complete[j].PartNumber
	})

	if _, err := m.core.CompleteMultipartUpload(ctx, bucket, key, uploadID, complete, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("complete multipart upload: %w", err)
	}

	logger.Ctx(ctx).Debug().
		Str("key", key).
		Str("upload_id", uploadID).
		Int("parts", len(complete)).
		Msg("completed multipart upload")
	return nil
}

func (m *Minio) listParts(ctx context.Context, bucket, key, uploadID string) (map[int]string, error) {
	parts := make(map[int]string)
	marker := 0
	for {
		res, err := m.core.ListObjectParts(ctx, bucket, key, uploadID, marker, minioListPageSize)
		if err != nil {
			return nil, fmt.Errorf("list parts: %w", err)
		}
		for _, p := range res.ObjectParts {
			parts[p.PartNumber] = p.ETag
		}
		if !res.IsTruncated {
			break
		}
		marker = res.NextPartNumberMarker
	}
	return parts, nil
}

func (m *Minio) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	err := m.core.AbortMultipartUpload(ctx, bucket, key, uploadID)
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchUpload" {
		logger.Ctx(ctx).Debug().Str("key", key).Str("upload_id", uploadID).Msg("multipart upload already gone")
		return nil
	}
	return fmt.Errorf("abort multipart upload: %w", err)
}

func (m *Minio) ListObjects(ctx context.Context, bucket, prefix string, fn func(key string) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range m.core.Client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return fmt.Errorf("list objects: %w", obj.Err)
		}
		if err := fn(obj.Key); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (m *Minio) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := m.core.Client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (m *Minio) Close() error {
	return nil
}
