package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
)

// streamPartSize is the buffer per multipart part. S3 requires at least
// 5 MiB for every part except the last.
const streamPartSize = 5 * 1024 * 1024

// S3Options configures the S3-compatible backend (AWS S3, MinIO, ...).
type S3Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string
}

// S3Store delegates object operations to an S3-compatible provider.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	opts    S3Options
	logger  logging.Logger
}

func NewS3Store(ctx context.Context, opts S3Options, logger logging.Logger) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		opts:    opts,
		logger:  logger,
	}, nil
}

func optionalContentType(contentType string) *string {
	if contentType == "" {
		return nil
	}
	return aws.String(contentType)
}

func (s *S3Store) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: optionalContentType(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %w", common.ErrStorageBackend, key, err)
	}

	s.logger.Info(ctx, "file stored", "key", key, "bucket", s.opts.Bucket)
	return key, nil
}

// StoreStream uploads the reader's content without buffering the whole
// payload: payloads that fit one part go through PutObject, anything larger
// becomes a multipart upload with parts flushed as they fill. A failed or
// oversized stream aborts the multipart upload so no parts linger.
func (s *S3Store) StoreStream(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	var buf bytes.Buffer

	_, err := io.CopyN(&buf, r, streamPartSize)
	if errors.Is(err, io.EOF) {
		return s.Store(ctx, key, buf.Bytes(), contentType)
	}
	if err != nil {
		return "", fmt.Errorf("read stream for %s: %w", key, err)
	}

	create, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		ContentType: optionalContentType(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: create multipart upload %s: %w", common.ErrStorageBackend, key, err)
	}
	uploadID := create.UploadId

	abort := func() {
		abortCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		_, _ = s.client.AbortMultipartUpload(abortCtx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.opts.Bucket),
			Key:      aws.String(key),
			UploadId: uploadID,
		})
	}

	var parts []types.CompletedPart
	partNum := int32(0)

	for {
		partNum++
		part, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(s.opts.Bucket),
			Key:        aws.String(key),
			UploadId:   uploadID,
			PartNumber: aws.Int32(partNum),
			Body:       bytes.NewReader(buf.Bytes()),
		})
		if err != nil {
			abort()
			return "", fmt.Errorf("%w: upload part %d of %s: %w", common.ErrStorageBackend, partNum, key, err)
		}
		parts = append(parts, types.CompletedPart{ETag: part.ETag, PartNumber: aws.Int32(partNum)})
		buf.Reset()

		_, err = io.CopyN(&buf, r, streamPartSize)
		if errors.Is(err, io.EOF) {
			if buf.Len() > 0 {
				partNum++
				part, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
					Bucket:     aws.String(s.opts.Bucket),
					Key:        aws.String(key),
					UploadId:   uploadID,
					PartNumber: aws.Int32(partNum),
					Body:       bytes.NewReader(buf.Bytes()),
				})
				if err != nil {
					abort()
					return "", fmt.Errorf("%w: upload part %d of %s: %w", common.ErrStorageBackend, partNum, key, err)
				}
				parts = append(parts, types.CompletedPart{ETag: part.ETag, PartNumber: aws.Int32(partNum)})
			}
			break
		}
		if err != nil {
			// Reader failure, e.g. the ingestor's size ceiling tripping
			// mid-stream. Abort so the provider drops the uploaded parts.
			abort()
			return "", fmt.Errorf("read stream for %s: %w", key, err)
		}
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.opts.Bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		abort()
		return "", fmt.Errorf("%w: complete multipart upload %s: %w", common.ErrStorageBackend, key, err)
	}

	s.logger.Info(ctx, "file stored from stream", "key", key, "bucket", s.opts.Bucket, "parts", len(parts))
	return key, nil
}

func (s *S3Store) Retrieve(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get %s: %w", common.ErrStorageBackend, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", common.ErrStorageBackend, key, err)
	}
	return data, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) (bool, error) {
	// DeleteObject succeeds for absent keys, so check first to keep the
	// "false when not found" contract.
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, fmt.Errorf("%w: delete %s: %w", common.ErrStorageBackend, key, err)
	}

	s.logger.Info(ctx, "file deleted", "key", key, "bucket", s.opts.Bucket)
	return true, nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: head %s: %w", common.ErrStorageBackend, key, err)
	}
	return true, nil
}

func (s *S3Store) URL(key string) string {
	if s.opts.BaseEndpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.opts.BaseEndpoint, s.opts.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, key)
}

func (s *S3Store) PresignedUploadURL(ctx context.Context, key, contentType string, expiresIn time.Duration) (string, string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		ContentType: optionalContentType(contentType),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", "", fmt.Errorf("%w: presign put %s: %w", common.ErrStorageBackend, key, err)
	}

	return req.URL, MethodPut, nil
}
