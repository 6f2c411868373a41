// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package loader creates the train, validation and test datasets for the pneumonia detection
// model, along with the class weights computed during preprocessing.
//
// Usage:
//
//	l, err := loader.New(basePath, loader.DefaultImageSize, loader.DefaultBatchSize, loader.DefaultSeed)
//	if err != nil { ... }
//	trainDS, valDS, testDS, classWeights, err := l.Generators()
//	if err != nil { ... }
//	loop := train.NewLoop(trainer)
//	_, err = loop.RunEpochs(trainDS, numEpochs)
package loader

import (
	"maps"
	"path/filepath"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/chestxray/cxrdata/pkg/augment"
	"github.com/chestxray/cxrdata/pkg/config"
	"github.com/chestxray/cxrdata/pkg/flow"
)

const (
	DefaultImageSize = 224
	DefaultBatchSize = 32
	DefaultSeed      = 42

	TrainDir      = "train"
	ValidationDir = "val"
	TestDir       = "test"
)

// Splits lists the subdirectories of the base path, in the order returned by Generators.
var Splits = []string{TrainDir, ValidationDir, TestDir}

// Loader of the chest X-ray datasets.
type Loader struct {
	basePath  string
	imgSize   int
	batchSize int
	seed      int64

	parallelism      int
	dtype            dtypes.DType
	infiniteTraining bool
	weightedLabels   bool

	config *config.Preprocessing
}

// New creates a Loader for the preprocessed dataset in basePath, with images resized to imgSize x imgSize
// and grouped in batches of batchSize. The seed controls shuffling and augmentation of the training data.
//
// It loads the class weights from the preprocessing configuration file (see config.Path), and returns
// an error if it is missing or malformed.
func New(basePath string, imgSize, batchSize int, seed int64) (*Loader, error) {
	cfg, err := config.Load(config.Path(basePath))
	if err != nil {
		return nil, err
	}
	return &Loader{
		basePath:  basePath,
		imgSize:   imgSize,
		batchSize: batchSize,
		seed:      seed,
		dtype:     dtypes.Float32,
		config:    cfg,
	}, nil
}

// NewWithDefaults creates a Loader with DefaultImageSize, DefaultBatchSize and DefaultSeed.
func NewWithDefaults(basePath string) (*Loader, error) {
	return New(basePath, DefaultImageSize, DefaultBatchSize, DefaultSeed)
}

// WithParallelism sets the number of images decoded in parallel by each dataset. 0 uses the number of CPUs.
func (l *Loader) WithParallelism(parallelism int) *Loader {
	l.parallelism = parallelism
	return l
}

// WithDType sets the dtype of the images and labels. Defaults to Float32.
func (l *Loader) WithDType(dtype dtypes.DType) *Loader {
	l.dtype = dtype
	return l
}

// WithInfiniteTraining makes the training dataset loop over epochs indefinitely, for use with
// train.Loop.RunSteps. By default, it returns io.EOF at the end of every epoch.
func (l *Loader) WithInfiniteTraining(infinite bool) *Loader {
	l.infiniteTraining = infinite
	return l
}

// WithWeightedLabels makes the training dataset yield the class weight of each example as a second
// labels tensor, which GoMLX losses take as per-example weights.
func (l *Loader) WithWeightedLabels(weighted bool) *Loader {
	l.weightedLabels = weighted
	return l
}

// BasePath returns the directory with the train, val and test subdirectories.
func (l *Loader) BasePath() string { return l.basePath }

// ClassWeights returns a copy of the class weights read from the preprocessing configuration.
func (l *Loader) ClassWeights() map[int]float64 {
	return maps.Clone(l.config.ClassWeights)
}

// Config returns the preprocessing configuration loaded.
func (l *Loader) Config() *config.Preprocessing { return l.config }

// newDataset creates the dataset for one split.
func (l *Loader) newDataset(split string) (*flow.Dataset, error) {
	augmentation := augment.EvalConfig()
	isTrain := split == TrainDir
	if isTrain {
		augmentation = augment.TrainingConfig()
	}
	ds, err := flow.NewDataset(split, filepath.Join(l.basePath, split), augmentation)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create %q dataset", split)
	}
	ds.WithTargetSize(l.imgSize, l.imgSize).
		WithBatchSize(l.batchSize).
		WithColorMode(augment.Grayscale).
		WithClassMode(flow.Binary).
		WithDType(l.dtype).
		WithShuffle(isTrain).
		WithSeed(l.seed).
		WithParallelism(l.parallelism)
	if isTrain {
		ds.WithInfinite(l.infiniteTraining)
		if l.weightedLabels {
			ds.WithClassWeights(l.ClassWeights())
		}
	}
	return ds.Done()
}

// Generators returns the datasets for the train, val and test splits, and the class weights.
//
// The training dataset is shuffled and augmented with augment.TrainingConfig; validation and test
// are only rescaled and yielded in file order. All images are grayscale, resized to imgSize x imgSize.
func (l *Loader) Generators() (trainDS, valDS, testDS *flow.Dataset, classWeights map[int]float64, err error) {
	datasets := make([]*flow.Dataset, len(Splits))
	var g errgroup.Group
	for ii, split := range Splits {
		g.Go(func() error {
			var dsErr error
			datasets[ii], dsErr = l.newDataset(split)
			return dsErr
		})
	}
	if err = g.Wait(); err != nil {
		return
	}
	for _, ds := range datasets {
		klog.V(1).Infof("%s: %d images in %d batches, classes %q", ds.Name(), ds.Samples(), ds.NumBatches(),
			ds.ClassNames())
	}
	trainDS, valDS, testDS = datasets[0], datasets[1], datasets[2]
	classWeights = l.ClassWeights()
	return
}

// SplitSummary holds the number of images of one split.
type SplitSummary struct {
	Split       string
	ClassNames  []string
	ClassCounts map[int]int
	Samples     int
}

// Summary scans the splits and returns the number of images per class of each of them.
func (l *Loader) Summary() ([]SplitSummary, error) {
	trainDS, valDS, testDS, _, err := l.Generators()
	if err != nil {
		return nil, err
	}
	summaries := make([]SplitSummary, 0, len(Splits))
	for _, ds := range []*flow.Dataset{trainDS, valDS, testDS} {
		summaries = append(summaries, SplitSummary{
			Split:       ds.Name(),
			ClassNames:  ds.ClassNames(),
			ClassCounts: ds.ClassCounts(),
			Samples:     ds.Samples(),
		})
	}
	return summaries, nil
}
