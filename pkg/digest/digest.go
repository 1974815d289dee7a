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

package digest

import (
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"

	godigest "github.com/opencontainers/go-digest"
)

const (
	// AlgorithmSHA256 is the algorithm used for artifact digests.
	AlgorithmSHA256 = string(godigest.SHA256)

	// AlgorithmSHA512 is kept for stores that pin a stronger hash.
	AlgorithmSHA512 = string(godigest.SHA512)
)

// FromBytes returns the sha256 digest of data in "sha256:<hex>" form.
func FromBytes(data []byte) string {
	return godigest.FromBytes(data).String()
}

// Validate checks that s is a well formed digest of an available algorithm.
func Validate(s string) error {
	d, err := godigest.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid digest %q: %w", s, err)
	}

	if !d.Algorithm().Available() {
		return fmt.Errorf("unavailable digest algorithm %s", d.Algorithm())
	}

	return nil
}

// Verify reports whether data matches the expected digest.
func Verify(expected string, data []byte) bool {
	d, err := godigest.Parse(expected)
	if err != nil {
		return false
	}

	verifier := d.Verifier()
	if _, err := verifier.Write(data); err != nil {
		return false
	}

	return verifier.Verified()
}

// AlgorithmOf returns the algorithm part of a digest string.
func AlgorithmOf(s string) (string, error) {
	d, err := godigest.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid digest %q: %w", s, err)
	}

	return string(d.Algorithm()), nil
}
