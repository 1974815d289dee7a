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

package unit

import (
	"encoding/json"
	"strings"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Bytes is a size in bytes, written in config files as a number or
// as a human readable string like 64MiB.
type Bytes int64

const (
	B   Bytes = 1
	KiB       = Bytes(units.KiB)
	MiB       = Bytes(units.MiB)
	GiB       = Bytes(units.GiB)
)

// ToNumber returns the number of bytes.
func (b Bytes) ToNumber() int64 {
	return int64(b)
}

// Set is used for command flag var.
func (b *Bytes) Set(s string) error {
	if strings.TrimSpace(s) == "" {
		*b = 0
		return nil
	}

	size, err := Parse(s)
	if err != nil {
		return err
	}

	*b = size
	return nil
}

func (b Bytes) Type() string {
	return "bytes"
}

func (b Bytes) String() string {
	return units.BytesSize(float64(b))
}

// Parse parses sizes like 512, 64MiB or 1g with binary multiples.
func Parse(s string) (Bytes, error) {
	size, err := units.RAMInBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.WithMessagef(err, "parse size %q", s)
	}

	if size < 0 {
		return 0, errors.Errorf("parse size %q: negative size", s)
	}

	return Bytes(size), nil
}

func (b Bytes) MarshalYAML() (any, error) {
	return b.String(), nil
}

func (b *Bytes) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}

	return b.unmarshal(v)
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	return b.unmarshal(v)
}

func (b *Bytes) unmarshal(v any) error {
	switch value := v.(type) {
	case int:
		*b = Bytes(value)
	case int64:
		*b = Bytes(value)
	case float64:
		*b = Bytes(value)
	case string:
		return b.Set(value)
	default:
		return errors.New("invalid size")
	}

	if *b < 0 {
		return errors.New("invalid size")
	}

	return nil
}
