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

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"d7y.io/predictor/internal/dferrors"
)

type gcs struct {
	// GCS client.
	client *storage.Client

	// projectID owns buckets created by CreateBucket.
	projectID string

	// region is bucket location.
	region string

	// endpoint is datacenter endpoint.
	endpoint string
}

// New gcs instance. accessKey is the project id and secretKey the path of a
// service account credentials file, application default credentials are
// used when it is empty.
func newGCS(region, endpoint, accessKey, secretKey string) (ObjectStorage, error) {
	var opts []option.ClientOption
	if secretKey != "" {
		opts = append(opts, option.WithCredentialsFile(secretKey))
	}

	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("new gcs client failed: %s", err)
	}

	return &gcs{
		client:    client,
		projectID: accessKey,
		region:    region,
		endpoint:  endpoint,
	}, nil
}

// GetMetadata returns metadata of object storage.
func (g *gcs) GetMetadata(ctx context.Context) *Metadata {
	return &Metadata{
		Name:     ServiceNameGCS,
		Region:   g.region,
		Endpoint: g.endpoint,
	}
}

// IsBucketExist returns whether the bucket exists.
func (g *gcs) IsBucketExist(ctx context.Context, bucketName string) (bool, error) {
	if _, err := g.client.Bucket(bucketName).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrBucketNotExist) {
			return false, nil
		}

		return false, gcsError(err, "bucket attrs %s", bucketName)
	}

	return true, nil
}

// CreateBucket creates bucket of object storage.
func (g *gcs) CreateBucket(ctx context.Context, bucketName string) error {
	var attrs *storage.BucketAttrs
	if g.region != "" {
		attrs = &storage.BucketAttrs{Location: g.region}
	}

	return gcsError(g.client.Bucket(bucketName).Create(ctx, g.projectID, attrs), "create bucket %s", bucketName)
}

// GetObjectMetadata returns metadata of object.
func (g *gcs) GetObjectMetadata(ctx context.Context, bucketName, objectKey string) (*ObjectMetadata, bool, error) {
	attrs, err := g.client.Bucket(bucketName).Object(objectKey).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, false, nil
		}

		return nil, false, gcsError(err, "object attrs %s/%s", bucketName, objectKey)
	}

	return &ObjectMetadata{
		Key:           objectKey,
		ContentLength: attrs.Size,
		ContentType:   attrs.ContentType,
		ETag:          attrs.Etag,
		Digest:        attrs.Metadata[MetaDigest],
	}, true, nil
}

// GetObject returns data of object.
func (g *gcs) GetObject(ctx context.Context, bucketName, objectKey string) (io.ReadCloser, error) {
	reader, err := g.client.Bucket(bucketName).Object(objectKey).NewReader(ctx)
	if err != nil {
		return nil, gcsError(err, "get object %s/%s", bucketName, objectKey)
	}

	return reader, nil
}

// PutObject puts data of object.
func (g *gcs) PutObject(ctx context.Context, bucketName, objectKey, digest string, reader io.Reader) error {
	writer := g.client.Bucket(bucketName).Object(objectKey).NewWriter(ctx)
	writer.Metadata = map[string]string{MetaDigest: digest}

	if _, err := io.Copy(writer, reader); err != nil {
		_ = writer.Close()
		return gcsError(err, "put object %s/%s", bucketName, objectKey)
	}

	return gcsError(writer.Close(), "put object %s/%s", bucketName, objectKey)
}

// gcsError classifies a google api error into the store error codes.
func gcsError(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return dferrors.Wrapf(err, dferrors.CodeArtifactNotFound, format, a...)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return dferrors.Wrapf(err, dferrors.CodeArtifactNotFound, format, a...)
		case http.StatusRequestEntityTooLarge:
			return dferrors.Wrapf(err, dferrors.CodePayloadTooLarge, format, a...)
		}
	}

	return dferrors.Wrapf(err, dferrors.CodeStoreUnavailable, format, a...)
}
