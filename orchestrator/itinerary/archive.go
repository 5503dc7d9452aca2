// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package itinerary

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Archiver keeps a copy of raw uploads
type Archiver interface {
	Archive(ctx context.Context, subjectID string, u Upload) (string, error)
}

// S3Options configures the S3 archiver
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes uploads to itineraries/<subject>/<uuid><ext>
type S3Archiver struct {
	client putObjectAPI
	bucket string
}

// NewS3Archiver loads AWS config and builds the client. Static keys are used
// when both are set, otherwise the default credential chain applies. A custom
// endpoint switches to path-style addressing (MinIO, LocalStack).
func NewS3Archiver(ctx context.Context, opts S3Options) (*S3Archiver, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Archiver{client: s3.NewFromConfig(awsCfg, s3Opts...), bucket: opts.Bucket}, nil
}

// Archive uploads u and returns its object key
func (a *S3Archiver) Archive(ctx context.Context, subjectID string, u Upload) (string, error) {
	key := archiveKey(subjectID, u)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(u.Data),
		ContentType: aws.String(u.MediaType()),
		Metadata: map[string]string{
			"subject-id":        subjectID,
			"original-filename": u.Filename,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return key, nil
}

func archiveKey(subjectID string, u Upload) string {
	ext := strings.ToLower(filepath.Ext(u.Filename))
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(u.MediaType()); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return path.Join("itineraries", subjectID, uuid.New().String()+ext)
}

var _ Archiver = (*S3Archiver)(nil)
