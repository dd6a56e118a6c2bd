/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/example/relaycast/internal/config"
	"github.com/example/relaycast/internal/telemetry"
)

// RecordingArchiver uploads completed recordings to S3-compatible object
// storage once a session finishes writing to local disk.
type RecordingArchiver struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// NewRecordingArchiver constructs an archiver from cfg. Returns (nil, nil) when
// cfg.S3Bucket is empty, signalling archival is disabled.
func NewRecordingArchiver(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*RecordingArchiver, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}

	var resolver aws.EndpointResolverWithOptions
	if cfg.S3Endpoint != "" {
		resolver = aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.S3Endpoint,
				HostnameImmutable: true,
				SigningRegion:     cfg.S3Region,
			}, nil
		})
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "",
		)),
	}
	if resolver != nil {
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &RecordingArchiver{
		client: client,
		bucket: cfg.S3Bucket,
		logger: logger.With().Str("component", "archive").Logger(),
	}, nil
}

// Upload reads path from local disk and stores it under key
// "recordings/<sessionID>.webm" in the configured bucket.
func (a *RecordingArchiver) Upload(ctx context.Context, sessionID, path string) error {
	ctx, span := telemetry.StartSpan(ctx, "archive", "RecordingArchiver.Upload")
	defer span.End()
	telemetry.AddSpanAttributes(span, map[string]any{"session_id": sessionID, "bucket": a.bucket})

	f, err := os.Open(path)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	key := fmt.Sprintf("recordings/%s.webm", sessionID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("audio/webm"),
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("upload recording: %w", err)
	}

	a.logger.Info().Str("session_id", sessionID).Str("key", key).Msg("recording archived to S3")
	return nil
}
