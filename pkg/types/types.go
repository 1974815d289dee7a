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

package types

const (
	// TrainerName is name of trainer.
	TrainerName = "trainer"

	// PredictorName is name of predictor.
	PredictorName = "predictor"
)

const (
	// MetricsNamespace is namespace of metrics.
	MetricsNamespace = "housing"

	// TrainerMetricsName is name of trainer metrics.
	TrainerMetricsName = "trainer"

	// PredictorMetricsName is name of predictor metrics.
	PredictorMetricsName = "predictor"
)
