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

package dferrors

import (
	"errors"
	"fmt"
)

// common errors
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrEmptyValue      = errors.New("empty value")
)

type DfError struct {
	Code    Code
	Message string

	cause error
}

func (s *DfError) Error() string {
	if s.cause != nil {
		return fmt.Sprintf("[%s]%s: %s", s.Code, s.Message, s.cause)
	}

	return fmt.Sprintf("[%s]%s", s.Code, s.Message)
}

func (s *DfError) Unwrap() error {
	return s.cause
}

func New(code Code, msg string) *DfError {
	return &DfError{
		Code:    code,
		Message: msg,
	}
}

func Newf(code Code, format string, a ...any) *DfError {
	return &DfError{
		Code:    code,
		Message: fmt.Sprintf(format, a...),
	}
}

// Wrap attaches code and message to err. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}

	return &DfError{
		Code:    code,
		Message: msg,
		cause:   err,
	}
}

func Wrapf(err error, code Code, format string, a ...any) error {
	if err == nil {
		return nil
	}

	return &DfError{
		Code:    code,
		Message: fmt.Sprintf(format, a...),
		cause:   err,
	}
}

// CheckError reports whether the outermost DfError in err's chain carries code.
func CheckError(err error, code Code) bool {
	if err == nil {
		return false
	}

	var e *DfError
	return errors.As(err, &e) && e.Code == code
}

// CodeOf returns the code of the outermost DfError in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *DfError
	if errors.As(err, &e) {
		return e.Code, true
	}

	return CodeUnknown, false
}

// CategoryOf returns the category of err, CategoryInternal for foreign errors.
func CategoryOf(err error) Category {
	code, ok := CodeOf(err)
	if !ok {
		return CategoryInternal
	}

	return code.Category()
}

func IsCategory(err error, category Category) bool {
	return err != nil && CategoryOf(err) == category
}
