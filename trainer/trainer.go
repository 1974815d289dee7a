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

package trainer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/push"

	"d7y.io/predictor/internal/dferrors"
	logger "d7y.io/predictor/internal/dflog"
	"d7y.io/predictor/pkg/artifact"
	"d7y.io/predictor/pkg/dfpath"
	"d7y.io/predictor/pkg/digest"
	"d7y.io/predictor/pkg/objectstorage"
	"d7y.io/predictor/pkg/table"
	"d7y.io/predictor/trainer/config"
	"d7y.io/predictor/trainer/dataset"
	"d7y.io/predictor/trainer/metrics"
	"d7y.io/predictor/trainer/storage"
	"d7y.io/predictor/trainer/training"
)

const (
	// timestampLayout is the layout of {{.Timestamp}} in key templates.
	timestampLayout = "20060102T150405Z"
)

// Stages of the training pipeline, used as metric labels.
const (
	stageFetch   = "fetch"
	stageSplit   = "split"
	stageTrain   = "train"
	stagePublish = "publish"
)

// Report describes a published model.
type Report struct {
	RunID      string
	Seed       int64
	TrainRows  int
	TestRows   int
	Evaluation training.Evaluation
	TrainRMSE  float64
	Bucket     string
	Key        string
	Digest     string
	Size       int64
}

// KeyData is the data of key templates.
type KeyData struct {
	RunID     string
	Timestamp string
}

type Server struct {
	// Server configuration.
	config *config.Config

	// Storage interface.
	storage storage.Storage

	// Source of the dataset.
	source *dataset.Source

	// Store of published models.
	store *artifact.Store

	// newTraining returns the trainer of a run.
	newTraining func(runID string) training.Training

	// Pusher of metrics, nil when metrics are disabled.
	pusher *push.Pusher

	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Option is a functional option for the server.
type Option func(s *Server)

// WithStorage sets the local storage.
func WithStorage(storage storage.Storage) Option {
	return func(s *Server) {
		s.storage = storage
	}
}

// WithSource sets the dataset source.
func WithSource(source *dataset.Source) Option {
	return func(s *Server) {
		s.source = source
	}
}

// WithObjectStorage sets the object storage models are published to.
func WithObjectStorage(client objectstorage.ObjectStorage) Option {
	return func(s *Server) {
		s.store = newStore(client, s.config)
	}
}

// WithTraining sets the trainer used by every run.
func WithTraining(t training.Training) Option {
	return func(s *Server) {
		s.newTraining = func(string) training.Training {
			return t
		}
	}
}

// WithNow sets the clock used by key templates.
func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New returns a new training pipeline.
func New(ctx context.Context, cfg *config.Config, d dfpath.Dfpath, options ...Option) (*Server, error) {
	s := &Server{
		config: cfg,
		source: dataset.NewSource(),
		now:    time.Now,
		newTraining: func(runID string) training.Training {
			return training.New(training.WithRunID(runID), training.WithProgress(cfg.Console))
		},
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, opt := range options {
		opt(s)
	}

	// Initialize Storage.
	if s.storage == nil {
		s.storage = storage.New(d.DataDir())
	}

	// Initialize object storage.
	if s.store == nil {
		client, err := objectstorage.New(cfg.ObjectStorage.Name, cfg.ObjectStorage.Region, cfg.ObjectStorage.Endpoint,
			cfg.ObjectStorage.AccessKey, cfg.ObjectStorage.SecretKey)
		if err != nil {
			return nil, err
		}

		s.store = newStore(client, cfg)
	}

	// Initialize metrics.
	if cfg.Metrics.Enable {
		s.pusher = metrics.New(&cfg.Metrics)
	}

	return s, nil
}

func newStore(client objectstorage.ObjectStorage, cfg *config.Config) *artifact.Store {
	return artifact.NewStore(client,
		artifact.WithMaxSize(cfg.ObjectStorage.MaxArtifactSize.ToNumber()),
		artifact.WithCreateBucket(cfg.ObjectStorage.CreateBucket))
}

// Serve runs the pipeline once and pushes metrics of the run.
func (s *Server) Serve() error {
	_, err := s.Run(s.ctx)

	if s.pusher != nil {
		if err := s.pusher.Push(); err != nil {
			logger.Warnf("push metrics to %s failed: %s", s.config.Metrics.PushGateway, err.Error())
		} else {
			logger.Infof("pushed metrics to %s", s.config.Metrics.PushGateway)
		}
	}

	return err
}

// Run fetches the dataset, splits it, trains a model and publishes it. Every
// error aborts the run.
func (s *Server) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := logger.WithRunID(runID)
	metrics.TrainingCount.Inc()

	tbl, err := s.load(ctx, runID)
	if err != nil {
		return nil, s.fail(stageFetch, err, "load dataset")
	}
	defer tbl.Release()
	log.Infof("loaded %d rows of %d columns from %s", tbl.NumRows(), tbl.NumCols(), s.config.Dataset.URL)

	seed := s.config.Dataset.Seed
	if seed == 0 {
		seed = s.now().UnixNano()
	}

	train, test, err := dataset.Split(tbl, s.config.Dataset.TestFraction, seed)
	if err != nil {
		return nil, s.fail(stageSplit, err, "split dataset")
	}
	defer train.Release()
	defer test.Release()
	log.Infof("split %d train rows and %d test rows with seed %d", train.NumRows(), test.NumRows(), seed)
	metrics.DatasetRows.WithLabelValues("train").Set(float64(train.NumRows()))
	metrics.DatasetRows.WithLabelValues("test").Set(float64(test.NumRows()))

	xTrain, yTrain, err := dataset.SplitFeaturesAndTarget(train)
	if err != nil {
		return nil, s.fail(stageSplit, err, "split train features")
	}
	defer xTrain.Release()
	defer yTrain.Release()

	xTest, yTest, err := dataset.SplitFeaturesAndTarget(test)
	if err != nil {
		return nil, s.fail(stageSplit, err, "split test features")
	}
	defer xTest.Release()
	defer yTest.Release()

	result, err := s.newTraining(runID).Train(ctx, xTrain, yTrain, xTest, yTest, s.config.Training)
	if err != nil {
		return nil, s.fail(stageTrain, err, "train model")
	}

	metrics.EvaluationGauge.WithLabelValues("mae").Set(result.Evaluation.MAE)
	metrics.EvaluationGauge.WithLabelValues("mse").Set(result.Evaluation.MSE)
	metrics.EvaluationGauge.WithLabelValues("rmse").Set(result.Evaluation.RMSE)
	metrics.EvaluationGauge.WithLabelValues("r2").Set(result.Evaluation.R2)
	metrics.EvaluationGauge.WithLabelValues("train_rmse").Set(result.TrainRMSE)

	key, err := s.key(runID)
	if err != nil {
		return nil, s.fail(stagePublish, err, "render key")
	}

	data, err := s.saveModel(result.Artifact, runID)
	if err != nil {
		return nil, s.fail(stagePublish, err, "save model")
	}

	metrics.UploadModelCount.Inc()
	if err := s.publish(ctx, data, key); err != nil {
		metrics.UploadModelFailureCount.Inc()
		return nil, s.fail(stagePublish, err, "publish model")
	}
	metrics.UploadModelSize.Set(float64(len(data)))

	report := &Report{
		RunID:      runID,
		Seed:       seed,
		TrainRows:  train.NumRows(),
		TestRows:   test.NumRows(),
		Evaluation: result.Evaluation,
		TrainRMSE:  result.TrainRMSE,
		Bucket:     s.config.ObjectStorage.Bucket,
		Key:        key,
		Digest:     digest.FromBytes(data),
		Size:       int64(len(data)),
	}

	s.clear(runID)
	metrics.TrainingDuration.Set(time.Since(start).Seconds())
	log.Infof("published %s model to %s/%s, digest %s", units.HumanSize(float64(report.Size)), report.Bucket, report.Key, report.Digest)
	return report, nil
}

// load downloads the dataset into local storage and parses the stored copy.
func (s *Server) load(ctx context.Context, runID string) (table.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Dataset.Timeout)
	defer cancel()

	data, err := s.source.Fetch(ctx, s.config.Dataset.URL)
	if err != nil {
		return table.Table{}, err
	}

	if err := s.storage.CreateDataset(data, runID); err != nil {
		return table.Table{}, errors.Wrap(err, "store dataset")
	}

	reader, err := s.storage.OpenDataset(runID)
	if err != nil {
		return table.Table{}, errors.Wrap(err, "open dataset")
	}
	defer reader.Close()

	stored, err := io.ReadAll(reader)
	if err != nil {
		return table.Table{}, errors.Wrap(err, "read dataset")
	}

	return dataset.Parse(stored)
}

// saveModel writes the artifact to local storage and returns the bytes read
// back from it.
func (s *Server) saveModel(data []byte, runID string) ([]byte, error) {
	if err := s.storage.CreateModel(data, runID); err != nil {
		return nil, dferrors.Wrap(err, dferrors.CodeArtifactWriteError, "write local model")
	}

	reader, err := s.storage.OpenModel(runID)
	if err != nil {
		return nil, dferrors.Wrap(err, dferrors.CodeArtifactWriteError, "open local model")
	}
	defer reader.Close()

	stored, err := io.ReadAll(reader)
	if err != nil {
		return nil, dferrors.Wrap(err, dferrors.CodeArtifactWriteError, "read local model")
	}

	if !bytes.Equal(stored, data) {
		return nil, dferrors.New(dferrors.CodeArtifactWriteError, "local model differs from the trained model")
	}

	return stored, nil
}

func (s *Server) publish(ctx context.Context, data []byte, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ObjectStorage.Timeout)
	defer cancel()

	return s.store.Publish(ctx, data, s.config.ObjectStorage.Bucket, key)
}

// key renders the object key of the run.
func (s *Server) key(runID string) (string, error) {
	if s.config.ObjectStorage.KeyTemplate == "" {
		return s.config.ObjectStorage.Key, nil
	}

	return RenderKey(s.config.ObjectStorage.KeyTemplate, KeyData{
		RunID:     runID,
		Timestamp: s.now().UTC().Format(timestampLayout),
	})
}

// RenderKey executes a key template.
func RenderKey(text string, data KeyData) (string, error) {
	tmpl, err := template.New("key").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", dferrors.Wrap(err, dferrors.CodeInvalidArgument, "parse key template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", dferrors.Wrap(err, dferrors.CodeInvalidArgument, "execute key template")
	}

	if buf.Len() == 0 {
		return "", dferrors.New(dferrors.CodeInvalidArgument, "key template renders an empty key")
	}

	return buf.String(), nil
}

// clear removes the local files of a published run.
func (s *Server) clear(runID string) {
	if err := s.storage.ClearDataset(runID); err != nil {
		logger.Warnf("clear dataset of run %s failed: %s", runID, err.Error())
	}

	if err := s.storage.ClearModel(runID); err != nil {
		logger.Warnf("clear model of run %s failed: %s", runID, err.Error())
	}
}

func (s *Server) fail(stage string, err error, msg string) error {
	reason := "Unknown"
	if code, ok := dferrors.CodeOf(err); ok {
		reason = code.String()
	}

	metrics.TrainingFailureCount.WithLabelValues(stage, reason).Inc()
	logger.Errorf("%s failed at stage %s: %s", msg, stage, err.Error())
	return errors.Wrap(err, msg)
}

// Stop cancels a running pipeline and removes local files.
func (s *Server) Stop() {
	s.cancel()

	// Clean storage file.
	if err := s.storage.Clear(); err != nil {
		logger.Errorf("clean storage file failed %s", err.Error())
	} else {
		logger.Info("clean storage file completed")
	}
}

// String returns a one line summary of the report.
func (r *Report) String() string {
	return fmt.Sprintf("run %s rmse %.4f r2 %.4f published to %s/%s", r.RunID, r.Evaluation.RMSE, r.Evaluation.R2, r.Bucket, r.Key)
}
