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
	"strconv"

	aliyunoss "github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/go-http-utils/headers"

	"d7y.io/predictor/internal/dferrors"
)

type oss struct {
	// OSS client.
	client *aliyunoss.Client

	// region is storage region.
	region string

	// endpoint is datacenter endpoint.
	endpoint string
}

// New oss instance.
func newOSS(region, endpoint, accessKey, secretKey string) (ObjectStorage, error) {
	client, err := aliyunoss.New(endpoint, accessKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("new oss client failed: %s", err)
	}

	return &oss{client, region, endpoint}, nil
}

// GetMetadata returns metadata of object storage.
func (o *oss) GetMetadata(ctx context.Context) *Metadata {
	return &Metadata{
		Name:     ServiceNameOSS,
		Region:   o.region,
		Endpoint: o.endpoint,
	}
}

// IsBucketExist returns whether the bucket exists.
func (o *oss) IsBucketExist(ctx context.Context, bucketName string) (bool, error) {
	ok, err := o.client.IsBucketExist(bucketName)
	return ok, ossError(err, "head bucket %s", bucketName)
}

// CreateBucket creates bucket of object storage.
func (o *oss) CreateBucket(ctx context.Context, bucketName string) error {
	return ossError(o.client.CreateBucket(bucketName), "create bucket %s", bucketName)
}

// GetObjectMetadata returns metadata of object.
func (o *oss) GetObjectMetadata(ctx context.Context, bucketName, objectKey string) (*ObjectMetadata, bool, error) {
	bucket, err := o.client.Bucket(bucketName)
	if err != nil {
		return nil, false, ossError(err, "bucket %s", bucketName)
	}

	header, err := bucket.GetObjectDetailedMeta(objectKey)
	if err != nil {
		if isOSSStatus(err, http.StatusNotFound) {
			return nil, false, nil
		}

		return nil, false, ossError(err, "head object %s/%s", bucketName, objectKey)
	}

	contentLength, err := strconv.ParseInt(header.Get(headers.ContentLength), 10, 64)
	if err != nil {
		return nil, false, dferrors.Wrapf(err, dferrors.CodeStoreUnavailable, "parse content length of %s/%s", bucketName, objectKey)
	}

	return &ObjectMetadata{
		Key:           objectKey,
		ContentLength: contentLength,
		ContentType:   header.Get(headers.ContentType),
		ETag:          header.Get(headers.ETag),
		Digest:        header.Get(aliyunoss.HTTPHeaderOssMetaPrefix + MetaDigest),
	}, true, nil
}

// GetObject returns data of object.
func (o *oss) GetObject(ctx context.Context, bucketName, objectKey string) (io.ReadCloser, error) {
	bucket, err := o.client.Bucket(bucketName)
	if err != nil {
		return nil, ossError(err, "bucket %s", bucketName)
	}

	body, err := bucket.GetObject(objectKey)
	if err != nil {
		return nil, ossError(err, "get object %s/%s", bucketName, objectKey)
	}

	return body, nil
}

// PutObject puts data of object.
func (o *oss) PutObject(ctx context.Context, bucketName, objectKey, digest string, reader io.Reader) error {
	bucket, err := o.client.Bucket(bucketName)
	if err != nil {
		return ossError(err, "bucket %s", bucketName)
	}

	meta := aliyunoss.Meta(MetaDigest, digest)
	return ossError(bucket.PutObject(objectKey, reader, meta), "put object %s/%s", bucketName, objectKey)
}

func isOSSStatus(err error, status int) bool {
	var serr aliyunoss.ServiceError
	return errors.As(err, &serr) && serr.StatusCode == status
}

// ossError classifies an oss error into the store error codes.
func ossError(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}

	var serr aliyunoss.ServiceError
	if errors.As(err, &serr) {
		switch {
		case serr.StatusCode == http.StatusNotFound:
			return dferrors.Wrapf(err, dferrors.CodeArtifactNotFound, format, a...)
		case serr.StatusCode == http.StatusRequestEntityTooLarge, serr.Code == "EntityTooLarge":
			return dferrors.Wrapf(err, dferrors.CodePayloadTooLarge, format, a...)
		}
	}

	return dferrors.Wrapf(err, dferrors.CodeStoreUnavailable, format, a...)
}
