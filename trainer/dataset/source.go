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

// Package dataset fetches, parses and splits the housing dataset.
package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/docker/go-units"
	"github.com/go-http-utils/headers"
	"github.com/gocarina/gocsv"

	"d7y.io/predictor/internal/dferrors"
	logger "d7y.io/predictor/internal/dflog"
	"d7y.io/predictor/pkg/table"
)

const (
	// DefaultURL is the public copy of the Boston housing dataset.
	DefaultURL = "https://raw.githubusercontent.com/selva86/datasets/master/BostonHousing.csv"

	// maxDatasetSize caps a downloaded dataset.
	maxDatasetSize = 256 * units.MiB
)

// Source downloads the dataset. It applies no timeout of its own,
// the caller's context bounds the request.
type Source struct {
	client *http.Client
}

// SourceOption is a functional option for Source.
type SourceOption func(*Source)

// WithHTTPClient sets the http client used for downloads.
func WithHTTPClient(client *http.Client) SourceOption {
	return func(s *Source) {
		s.client = client
	}
}

// NewSource returns a new Source.
func NewSource(options ...SourceOption) *Source {
	s := &Source{client: http.DefaultClient}
	for _, opt := range options {
		opt(s)
	}

	return s
}

// Fetch returns the raw csv bytes found at rawURL. Plain paths and file://
// urls are read from the local filesystem.
func (s *Source) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, dferrors.Wrapf(err, dferrors.CodeDatasetFetch, "parse url %s", rawURL)
	}

	switch u.Scheme {
	case "", "file":
		data, err := os.ReadFile(u.Path)
		if err != nil {
			return nil, dferrors.Wrapf(err, dferrors.CodeDatasetFetch, "read %s", u.Path)
		}

		return data, nil
	case "http", "https":
	default:
		return nil, dferrors.Newf(dferrors.CodeDatasetFetch, "unsupported scheme %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, dferrors.Wrapf(err, dferrors.CodeDatasetFetch, "new request %s", rawURL)
	}
	req.Header.Set(headers.Accept, "text/csv, text/plain, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, dferrors.Wrapf(err, dferrors.CodeDatasetFetch, "get %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, dferrors.Newf(dferrors.CodeDatasetFetch, "get %s: unexpected status %s", rawURL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDatasetSize+1))
	if err != nil {
		return nil, dferrors.Wrapf(err, dferrors.CodeDatasetFetch, "read body of %s", rawURL)
	}

	if len(data) > maxDatasetSize {
		return nil, dferrors.Newf(dferrors.CodeDatasetFetch, "dataset exceeds %s", units.HumanSize(maxDatasetSize))
	}

	logger.Infof("downloaded dataset %s of %s", rawURL, units.HumanSize(float64(len(data))))
	return data, nil
}

// Parse decodes csv bytes with a header row into a table holding the feature
// columns followed by the target column. Extra columns are ignored.
func Parse(data []byte) (table.Table, error) {
	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return table.Table{}, dferrors.Wrap(err, dferrors.CodeDatasetParse, "read csv header")
	}

	present := make(map[string]struct{}, len(header))
	for _, name := range header {
		present[name] = struct{}{}
	}

	for _, name := range append(append([]string{}, FeatureNames...), TargetName) {
		if _, ok := present[name]; !ok {
			return table.Table{}, dferrors.Newf(dferrors.CodeMissingColumn, "dataset is missing column %s", name)
		}
	}

	var observations []*Observation
	if err := gocsv.UnmarshalBytes(data, &observations); err != nil {
		return table.Table{}, dferrors.Wrap(err, dferrors.CodeDatasetParse, "unmarshal csv")
	}

	return ToTable(observations)
}

// Load fetches and parses the dataset at rawURL.
func (s *Source) Load(ctx context.Context, rawURL string) (table.Table, error) {
	data, err := s.Fetch(ctx, rawURL)
	if err != nil {
		return table.Table{}, err
	}

	return Parse(data)
}
