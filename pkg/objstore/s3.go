// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package objstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/logger"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/s3client"
	"github.com/LeeDigitalWorks/s3abuffer/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

func init() {
	Register(ProviderS3, openS3)
}

// S3API is the subset of *s3.Client the adapter calls.
type S3API interface {
	ListMultipartUploads(ctx context.Context, params *s3.ListMultipartUploadsInput, optFns ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	ListParts(ctx context.Context, params *s3.ListPartsInput, optFns ...func(*s3.Options)) (*s3.ListPartsOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 implements Client with the AWS SDK.
type S3 struct {
	api                S3API
	pool               *s3client.Pool
	completeOnLastPart bool
}

// NewS3 wraps an existing API client.
func NewS3(api S3API, completeOnLastPart bool) *S3 {
	return &S3{api: api, completeOnLastPart: completeOnLastPart}
}

func openS3(ctx context.Context, cfg Config) (Client, error) {
	tlsConfig, err := utils.LoadClientTLSConfig(cfg.CAFile, cfg.InsecureSkipVerify)
	if err != nil {
		return nil, err
	}

	pool := s3client.NewPool(cfg.Timeout, 0)
	if tlsConfig != nil {
		pool.SetTLSConfig(tlsConfig)
	}
	client, err := pool.GetClient(ctx, &s3client.Config{
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		SessionToken:    cfg.SessionToken,
		PathStyle:       cfg.PathStyle,
	})
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	s := NewS3(client, cfg.CompleteOnLastPart)
	s.pool = pool
	return s, nil
}

func (s *S3) Provider() Provider {
	return ProviderS3
}

func (s *S3) ListMultipartUploads(ctx context.Context, bucket string) ([]Upload, error) {
	input := &s3.ListMultipartUploadsInput{
		Bucket: aws.String(bucket),
	}

	var uploads []Upload
	for {
		out, err := s.api.ListMultipartUploads(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list multipart uploads: %w", err)
		}
		for _, u := range out.Uploads {
			uploads = append(uploads, Upload{
				Key:       aws.ToString(u.Key),
				UploadID:  aws.ToString(u.UploadId),
				Initiated: aws.ToTime(u.Initiated),
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.KeyMarker = out.NextKeyMarker
		input.UploadIdMarker = out.NextUploadIdMarker
	}

	return uploads, nil
}

func (s *S3) PutObject(ctx context.Context, bucket, key, path string) error {
	f, size, err := openForUpload(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *S3) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, path string, last bool) error {
	f, size, err := openForUpload(path)
	if err != nil {
		return err
	}
	defer f.Close()

	out, err := s.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(int32(partNumber)),
		Body:          f,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		if isNoSuchUpload(err) {
			return fmt.Errorf("upload part %d: %w: %w", partNumber, ErrNoSuchUpload, err)
		}
		return fmt.Errorf("upload part %d: %w", partNumber, err)
	}

	if !last || !s.completeOnLastPart {
		return nil
	}

	parts, err := s.listParts(ctx, bucket, key, uploadID)
	if err != nil {
		return err
	}
	parts = mergePart(parts, types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(int32(partNumber)),
	})

	_, err = s.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return fmt.Errorf("complete multipart upload: %w", err)
	}

	logger.Ctx(ctx).Debug().
		Str("key", key).
		Str("upload_id", uploadID).
		Int("parts", len(parts)).
		Msg("completed multipart upload")
	return nil
}

func (s *S3) listParts(ctx context.Context, bucket, key, uploadID string) ([]types.CompletedPart, error) {
	input := &s3.ListPartsInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	}

	var parts []types.CompletedPart
	for {
		out, err := s.api.ListParts(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list parts: %w", err)
		}
		for _, p := range out.Parts {
			parts = append(parts, types.CompletedPart{
				ETag:       p.ETag,
				PartNumber: p.PartNumber,
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.PartNumberMarker = out.NextPartNumberMarker
	}
	return parts, nil
}

// mergePart adds p unless a part with the same number is listed, and sorts by
// part number as CompleteMultipartUpload requires.
func mergePart(parts []types.CompletedPart, p types.CompletedPart) []types.CompletedPart {
	found := false
	for _, existing := range parts {
		if aws.ToInt32(existing.PartNumber) == aws.ToInt32(p.PartNumber) {
			found = true
			break
		}
	}
	if !found {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool {
		return aws.ToInt32(parts[i].PartNumber) < aws.ToInt32(parts[j].PartNumber)
	})
	return parts
}

func (s *S3) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	_, err := s.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		if isNoSuchUpload(err) {
			logger.Ctx(ctx).Debug().Str("key", key).Str("upload_id", uploadID).Msg("multipart upload already gone")
			return nil
		}
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	return nil
}

func (s *S3) ListObjects(ctx context.Context, bucket, prefix string, fn func(key string) error) error {
	paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if err := fn(aws.ToString(obj.Key)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *S3) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *S3) Close() error {
	if s.pool != nil {
		return s.pool.Close()
	}
	return nil
}

func isNoSuchUpload(err error) bool {
	var nsu *types.NoSuchUpload
	if errors.As(err, &nsu) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchUpload"
}

func openForUpload(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}
