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

//go:generate mockgen -destination mocks/training_mock.go -source training.go -package mocks

package training

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/mat"

	"d7y.io/predictor/internal/dferrors"
	logger "d7y.io/predictor/internal/dflog"
	"d7y.io/predictor/pkg/artifact"
	"d7y.io/predictor/pkg/boosting"
	"d7y.io/predictor/pkg/table"
)

const (
	// reportedPredictions is the number of test predictions written to the log.
	reportedPredictions = 5
)

// Result is the outcome of a training run.
type Result struct {
	// Artifact is the encoded model.
	Artifact []byte

	// Model is the decoded form of Artifact.
	Model *artifact.Model

	// Evaluation is measured on the test rows.
	Evaluation Evaluation

	// TrainRMSE is measured on the training rows.
	TrainRMSE float64

	// Predictions are the model outputs for the test rows.
	Predictions []float64
}

// Training defines the interface to train a regression model.
type Training interface {
	// Train fits a booster on the training rows, evaluates it on the test
	// rows and encodes it as an artifact.
	Train(ctx context.Context, xTrain, yTrain, xTest, yTest table.Table, params boosting.Params) (*Result, error)
}

// training implements Training interface.
type training struct {
	// runID identifies the run, a random uuid when empty.
	runID string

	// progress is where boosting progress is drawn, nil disables it.
	progress io.Writer

	// now returns the artifact creation time.
	now func() time.Time
}

// Option is a functional option for training.
type Option func(*training)

// WithRunID sets the run id recorded in the artifact.
func WithRunID(runID string) Option {
	return func(t *training) {
		t.runID = runID
	}
}

// WithProgress draws a progress bar of boosting rounds, used on console runs.
func WithProgress(enable bool) Option {
	return func(t *training) {
		if enable {
			t.progress = os.Stderr
		} else {
			t.progress = nil
		}
	}
}

// WithProgressWriter draws the progress bar on w.
func WithProgressWriter(w io.Writer) Option {
	return func(t *training) {
		t.progress = w
	}
}

// New returns a new Training.
func New(options ...Option) Training {
	t := &training{now: time.Now}
	for _, opt := range options {
		opt(t)
	}

	return t
}

// Train fits with default options.
func Train(ctx context.Context, xTrain, yTrain, xTest, yTest table.Table, params boosting.Params) (*Result, error) {
	return New().Train(ctx, xTrain, yTrain, xTest, yTest, params)
}

// Train fits a booster on the training rows. The context is only consulted
// between stages, fitting itself runs to completion.
func (t *training) Train(ctx context.Context, xTrain, yTrain, xTest, yTest table.Table, params boosting.Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	runID := t.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := logger.TrainLogger.With("runID", runID)

	featureNames := xTrain.ColumnNames()
	if !equalNames(featureNames, xTest.ColumnNames()) {
		return nil, dferrors.Newf(dferrors.CodeInvalidArgument, "train features %v differ from test features %v", featureNames, xTest.ColumnNames())
	}

	if yTrain.NumCols() != 1 || !equalNames(yTrain.ColumnNames(), yTest.ColumnNames()) {
		return nil, dferrors.Newf(dferrors.CodeInvalidArgument, "train target %v differs from test target %v", yTrain.ColumnNames(), yTest.ColumnNames())
	}
	targetName := yTrain.ColumnNames()[0]

	xTrainDense, yTrainVector, err := toMatrixAndVector(xTrain, yTrain)
	if err != nil {
		return nil, err
	}

	xTestDense, yTestVector, err := toMatrixAndVector(xTest, yTest)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var fitOptions []boosting.FitOption
	var bar *progressbar.ProgressBar
	if t.progress != nil {
		bar = progressbar.NewOptions(params.BoostingRounds,
			progressbar.OptionSetWriter(t.progress),
			progressbar.OptionSetDescription("boosting"),
			progressbar.OptionShowCount(),
		)
	}

	fitOptions = append(fitOptions, boosting.WithRoundCallback(func(round int, trainLoss float64) {
		if bar != nil {
			_ = bar.Add(1)
		}

		log.Debugf("round %d train loss %.6f", round, trainLoss)
	}))

	log.Infof("fit %d rows of %d features, params %+v", len(yTrainVector), len(featureNames), params)
	booster, err := boosting.Fit(xTrainDense, yTrainVector, params, fitOptions...)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trainPredictions, err := booster.PredictDense(xTrainDense)
	if err != nil {
		return nil, err
	}

	trainEvaluation, err := Evaluate(trainPredictions, yTrainVector)
	if err != nil {
		return nil, err
	}

	predictions, err := booster.PredictDense(xTestDense)
	if err != nil {
		return nil, err
	}

	evaluation, err := Evaluate(predictions, yTestVector)
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(predictions) && i < reportedPredictions; i++ {
		log.Infof("test row %d predicted %.4f actual %.4f", i, predictions[i], yTestVector[i])
	}
	log.Infof("test MAE %.4f MSE %.4f RMSE %.4f R2 %.4f, train RMSE %.4f",
		evaluation.MAE, evaluation.MSE, evaluation.RMSE, evaluation.R2, trainEvaluation.RMSE)

	model := &artifact.Model{
		FormatVersion: artifact.FormatVersion,
		RunID:         runID,
		CreatedAt:     t.now().UTC(),
		FeatureNames:  featureNames,
		TargetName:    targetName,
		Params:        params,
		Metrics: artifact.Metrics{
			MAE:       evaluation.MAE,
			MSE:       evaluation.MSE,
			RMSE:      evaluation.RMSE,
			R2:        evaluation.R2,
			TrainRMSE: trainEvaluation.RMSE,
			TrainRows: len(yTrainVector),
			TestRows:  len(yTestVector),
		},
		Booster: booster,
	}

	data, err := artifact.Encode(model)
	if err != nil {
		return nil, err
	}

	return &Result{
		Artifact:    data,
		Model:       model,
		Evaluation:  evaluation,
		TrainRMSE:   trainEvaluation.RMSE,
		Predictions: predictions,
	}, nil
}

func toMatrixAndVector(x, y table.Table) (*mat.Dense, []float64, error) {
	if x.NumRows() != y.NumRows() {
		return nil, nil, dferrors.Newf(dferrors.CodeInvalidArgument, "%d feature rows for %d target rows", x.NumRows(), y.NumRows())
	}

	dense, err := ToDense(x)
	if err != nil {
		return nil, nil, err
	}

	vector, err := ToVector(y)
	if err != nil {
		return nil, nil, err
	}

	return dense, vector, nil
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
