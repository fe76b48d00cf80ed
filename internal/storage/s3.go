/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package storage archives finished images to S3 compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/blnkfinance/artify/config"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// maxArchiveSize bounds how much of a provider response is copied.
const maxArchiveSize = 25 << 20

// Uploader is the subset of the S3 client used for archiving.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	uploader      Uploader
	client        *resty.Client
	bucket        string
	region        string
	publicBaseURL string
}

func NewS3Archiver(ctx context.Context, cfg config.StorageConfig) (*S3Archiver, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("storage bucket name is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyId != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyId, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewArchiver(client, cfg), nil
}

// NewArchiver builds an archiver around an existing uploader.
func NewArchiver(uploader Uploader, cfg config.StorageConfig) *S3Archiver {
	return &S3Archiver{
		uploader:      uploader,
		client:        resty.New().SetTimeout(30 * time.Second).SetRetryCount(2).SetLogger(logrus.StandardLogger()),
		bucket:        cfg.BucketName,
		region:        cfg.Region,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseUrl, "/"),
	}
}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Archive copies the image at sourceURL into the bucket under generations/<name>
// and returns its public URL.
func (a *S3Archiver) Archive(ctx context.Context, name, sourceURL string) (string, error) {
	resp, err := a.client.R().SetContext(ctx).Get(sourceURL)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", sourceURL, err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("downloading %s: unexpected status %s", sourceURL, resp.Status())
	}
	body := resp.Body()
	if len(body) == 0 {
		return "", errors.New("downloaded image is empty")
	}
	if len(body) > maxArchiveSize {
		return "", fmt.Errorf("downloaded image exceeds %d bytes", maxArchiveSize)
	}

	contentType := http.DetectContentType(body)
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported image type %s", contentType)
	}
	key := "generations/" + name + ext

	_, err = a.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(a.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	return a.publicURL(key), nil
}

func (a *S3Archiver) publicURL(key string) string {
	if a.publicBaseURL != "" {
		return a.publicBaseURL + "/" + key
	}
	if a.region == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", a.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.bucket, a.region, key)
}
