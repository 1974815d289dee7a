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
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestBytes_Set(t *testing.T) {
	tests := []struct {
		name   string
		size   string
		expect func(t *testing.T, b Bytes, err error)
	}{
		{
			name: "empty",
			size: "",
			expect: func(t *testing.T, b Bytes, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal(Bytes(0), b)
			},
		},
		{
			name: "plain number",
			size: "512",
			expect: func(t *testing.T, b Bytes, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal(Bytes(512), b)
			},
		},
		{
			name: "mebibytes",
			size: "64MiB",
			expect: func(t *testing.T, b Bytes, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal(64*MiB, b)
			},
		},
		{
			name: "short suffix",
			size: "2k",
			expect: func(t *testing.T, b Bytes, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal(2*KiB, b)
			},
		},
		{
			name: "unknown suffix",
			size: "8unknown",
			expect: func(t *testing.T, b Bytes, err error) {
				assert := assert.New(t)
				assert.Error(err)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var b Bytes
			err := b.Set(tc.size)
			tc.expect(t, b, err)
		})
	}
}

func TestBytes_String(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("64MiB", (64 * MiB).String())
	assert.Equal("1GiB", GiB.String())
	assert.Equal("bytes", B.Type())
	assert.Equal(int64(1024), KiB.ToNumber())
}

func TestBytes_YAML(t *testing.T) {
	assert := assert.New(t)

	var v struct {
		A Bytes `yaml:"a"`
		B Bytes `yaml:"b"`
	}
	assert.NoError(yaml.Unmarshal([]byte("a: 4MiB\nb: 1024\n"), &v))
	assert.Equal(4*MiB, v.A)
	assert.Equal(KiB, v.B)

	out, err := yaml.Marshal(v)
	assert.NoError(err)
	assert.Equal("a: 4MiB\nb: 1KiB\n", string(out))

	assert.Error(yaml.Unmarshal([]byte("a: [1]\n"), &v))
	assert.Error(yaml.Unmarshal([]byte("a: -1\n"), &v))
}

func TestBytes_JSON(t *testing.T) {
	assert := assert.New(t)
	var b Bytes
	assert.NoError(b.UnmarshalJSON([]byte(`"1MiB"`)))
	assert.Equal(MiB, b)
	assert.NoError(b.UnmarshalJSON([]byte(`2048`)))
	assert.Equal(2*KiB, b)
	assert.Error(b.UnmarshalJSON([]byte(`true`)))
}
