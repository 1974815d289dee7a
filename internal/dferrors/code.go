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

// Category groups codes by the stage that produced them.
type Category string

const (
	CategoryData     Category = "DataError"
	CategoryTraining Category = "TrainingError"
	CategoryStore    Category = "StoreError"
	CategoryArtifact Category = "ArtifactError"
	CategoryRequest  Category = "RequestError"
	CategoryInternal Category = "InternalFault"
)

type Code int32

// Codes are grouped by thousands, one block per category.
const (
	CodeUnknown Code = 0

	CodeInvalidTable     Code = 1000
	CodeMissingColumn    Code = 1001
	CodeInsufficientData Code = 1002
	CodeInvalidArgument  Code = 1003
	CodeDatasetFetch     Code = 1004
	CodeDatasetParse     Code = 1005

	CodeInvalidParams     Code = 2000
	CodeNonContiguousData Code = 2001
	CodeNumericDivergence Code = 2002

	CodeStoreUnavailable Code = 3000
	CodeArtifactNotFound Code = 3001
	CodePayloadTooLarge  Code = 3002

	CodeCorruptArtifact    Code = 4000
	CodeArtifactWriteError Code = 4001

	CodeMalformedRequest Code = 5000
	CodeNonFiniteInput   Code = 5001
	CodeFeatureMismatch  Code = 5002
	CodeModelNotLoaded   Code = 5003
)

var codeNames = map[Code]string{
	CodeUnknown:            "Unknown",
	CodeInvalidTable:       "InvalidTable",
	CodeMissingColumn:      "MissingColumn",
	CodeInsufficientData:   "InsufficientData",
	CodeInvalidArgument:    "InvalidArgument",
	CodeDatasetFetch:       "DatasetFetch",
	CodeDatasetParse:       "DatasetParse",
	CodeInvalidParams:      "InvalidParams",
	CodeNonContiguousData:  "NonContiguousData",
	CodeNumericDivergence:  "NumericDivergence",
	CodeStoreUnavailable:   "StoreUnavailable",
	CodeArtifactNotFound:   "ArtifactNotFound",
	CodePayloadTooLarge:    "PayloadTooLarge",
	CodeCorruptArtifact:    "CorruptArtifact",
	CodeArtifactWriteError: "ArtifactWriteError",
	CodeMalformedRequest:   "MalformedRequest",
	CodeNonFiniteInput:     "NonFiniteInput",
	CodeFeatureMismatch:    "FeatureMismatch",
	CodeModelNotLoaded:     "ModelNotLoaded",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return "Unknown"
}

// Category maps the code to its block.
func (c Code) Category() Category {
	switch c / 1000 {
	case 1:
		return CategoryData
	case 2:
		return CategoryTraining
	case 3:
		return CategoryStore
	case 4:
		return CategoryArtifact
	case 5:
		return CategoryRequest
	default:
		return CategoryInternal
	}
}
