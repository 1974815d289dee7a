/*
 *     Copyright 2023 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package objectstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"

	"d7y.io/predictor/internal/dferrors"
)

type s3 struct {
	// S3 client.
	client *awss3.S3

	// region is storage region.
	region string

	// endpoint is datacenter endpoint.
	endpoint string
}

// New s3 instance. An empty endpoint targets AWS, any other endpoint is
// treated as an S3 compatible service addressed by path style.
func newS3(region, endpoint, accessKey, secretKey string) (ObjectStorage, error) {
	if region == "" {
		region = DefaultS3Region
	}

	cfg := aws.NewConfig().WithRegion(region)
	if accessKey != "" || secretKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(accessKey, secretKey, ""))
	}

	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint).WithS3ForcePathStyle(DefaultS3ForcePathStyle)
	}

	s, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("new aws session failed: %s", err)
	}

	return &s3{
		client:   awss3.New(s),
		region:   region,
		endpoint: endpoint,
	}, nil
}

// GetMetadata returns metadata of object storage.
func (s *s3) GetMetadata(ctx context.Context) *Metadata {
	return &Metadata{
		Name:     ServiceNameS3,
		Region:   s.region,
		Endpoint: s.endpoint,
	}
}

// IsBucketExist returns whether the bucket exists.
func (s *s3) IsBucketExist(ctx context.Context, bucketName string) (bool, error) {
	_, err := s.client.HeadBucketWithContext(ctx, &awss3.HeadBucketInput{Bucket: aws.String(bucketName)})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}

		return false, s3Error(err, "head bucket %s", bucketName)
	}

	return true, nil
}

// CreateBucket creates bucket of object storage.
func (s *s3) CreateBucket(ctx context.Context, bucketName string) error {
	_, err := s.client.CreateBucketWithContext(ctx, &awss3.CreateBucketInput{Bucket: aws.String(bucketName)})
	return s3Error(err, "create bucket %s", bucketName)
}

// GetObjectMetadata returns metadata of object.
func (s *s3) GetObjectMetadata(ctx context.Context, bucketName, objectKey string) (*ObjectMetadata, bool, error) {
	resp, err := s.client.HeadObjectWithContext(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, false, nil
		}

		return nil, false, s3Error(err, "head object %s/%s", bucketName, objectKey)
	}

	return &ObjectMetadata{
		Key:           objectKey,
		ContentLength: aws.Int64Value(resp.ContentLength),
		ContentType:   aws.StringValue(resp.ContentType),
		ETag:          aws.StringValue(resp.ETag),
		Digest:        s3MetaValue(resp.Metadata, MetaDigest),
	}, true, nil
}

// GetObject returns data of object.
func (s *s3) GetObject(ctx context.Context, bucketName, objectKey string) (io.ReadCloser, error) {
	resp, err := s.client.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, s3Error(err, "get object %s/%s", bucketName, objectKey)
	}

	return resp.Body, nil
}

// PutObject puts data of object.
func (s *s3) PutObject(ctx context.Context, bucketName, objectKey, digest string, reader io.Reader) error {
	meta := map[string]string{}
	meta[MetaDigest] = digest

	_, err := s.client.PutObjectWithContext(ctx, &awss3.PutObjectInput{
		Bucket:   aws.String(bucketName),
		Key:      aws.String(objectKey),
		Body:     aws.ReadSeekCloser(reader),
		Metadata: aws.StringMap(meta),
	})

	return s3Error(err, "put object %s/%s", bucketName, objectKey)
}

// s3MetaValue looks up user metadata, the sdk canonicalizes header names so keys may differ in case.
func s3MetaValue(meta map[string]*string, key string) string {
	for k, v := range meta {
		if strings.EqualFold(k, key) {
			return aws.StringValue(v)
		}
	}

	return ""
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		// S3 is missing this error code.
		case "NotFound", awss3.ErrCodeNoSuchKey, awss3.ErrCodeNoSuchBucket:
			return true
		}
	}

	var rerr awserr.RequestFailure
	return errors.As(err, &rerr) && rerr.StatusCode() == http.StatusNotFound
}

// s3Error classifies an aws error into the store error codes.
func s3Error(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}

	if isS3NotFound(err) {
		return dferrors.Wrapf(err, dferrors.CodeArtifactNotFound, format, a...)
	}

	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == "EntityTooLarge" {
		return dferrors.Wrapf(err, dferrors.CodePayloadTooLarge, format, a...)
	}

	var rerr awserr.RequestFailure
	if errors.As(err, &rerr) && rerr.StatusCode() == http.StatusRequestEntityTooLarge {
		return dferrors.Wrapf(err, dferrors.CodePayloadTooLarge, format, a...)
	}

	return dferrors.Wrapf(err, dferrors.CodeStoreUnavailable, format, a...)
}
