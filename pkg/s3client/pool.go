// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package s3client builds and caches AWS SDK S3 clients.
package s3client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/LeeDigitalWorks/s3abuffer/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultRegion is used when neither the caller nor the environment sets one.
const DefaultRegion = "us-east-1"

// Config holds configuration for connecting to an S3 service.
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// Pool caches S3 clients by endpoint+region+accessKey and shares one HTTP
// client between them.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]*s3.Client
	timeout time.Duration
	maxIdle int

	httpClient *http.Client
}

// NewPool creates a new client pool with the given timeout and max idle connections.
func NewPool(timeout time.Duration, maxIdleConns int) *Pool {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	if maxIdleConns == 0 {
		maxIdleConns = 16
	}

	perHost := maxIdleConns / 4
	if perHost == 0 {
		perHost = 1
	}

	return &Pool{
		clients: make(map[string]*s3.Client),
		timeout: timeout,
		maxIdle: maxIdleConns,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        maxIdleConns,
				MaxIdleConnsPerHost: perHost,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// SetTLSConfig replaces the TLS settings of the shared transport. Call it
// before the first GetClient.
func (p *Pool) SetTLSConfig(cfg *tls.Config) {
	if tr, ok := p.httpClient.Transport.(*http.Transport); ok {
		tr.TLSClientConfig = cfg
	}
}

// GetClient returns an S3 client configured for cfg.
func (p *Pool) GetClient(ctx context.Context, cfg *Config) (*s3.Client, error) {
	cacheKey := fmt.Sprintf("%s|%s|%s|%t", cfg.Endpoint, cfg.Region, cfg.AccessKeyID, cfg.PathStyle)

	p.mu.RLock()
	client, exists := p.clients[cacheKey]
	p.mu.RUnlock()
	if exists {
		return client, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, exists := p.clients[cacheKey]; exists {
		return client, nil
	}

	client, err := p.createClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	p.clients[cacheKey] = client

	logger.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("region", cfg.Region).
		Bool("path_style", cfg.PathStyle).
		Msg("created S3 client")

	return client, nil
}

// createClient loads the AWS config. Static keys win; otherwise the default
// credential chain (env, shared files, IRSA, instance role) is used.
func (p *Pool) createClient(ctx context.Context, cfg *Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(p.httpClient),
	}

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = DefaultRegion
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.PathStyle
		},
	}

	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// Len returns the number of cached clients.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

// Close drops cached clients and idle connections.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clients = make(map[string]*s3.Client)
	p.httpClient.CloseIdleConnections()

	return nil
}
