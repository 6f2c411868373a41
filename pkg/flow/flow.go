// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package flow implements a train.Dataset that reads labeled images from a directory tree,
// with one subdirectory per class:
//
//	train/
//	├── NORMAL/
//	│   ├── IM-0115-0001.jpeg
//	│   └── ...
//	└── PNEUMONIA/
//	    ├── person1_bacteria_1.jpeg
//	    └── ...
//
// Classes are indexed in the sorted order of their subdirectory names, and the images of
// each class are found recursively. Each Yield returns one batch of resized, optionally
// augmented and rescaled images, together with their labels.
package flow

import (
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/chestxray/cxrdata/internal/workerspool"
	"github.com/chestxray/cxrdata/pkg/augment"
)

// ClassMode defines the type of labels yielded.
//
//go:generate go tool enumer -type=ClassMode -transform=snake -output=gen_classmode_enumer.go
type ClassMode int

const (
	// Binary yields labels 0 or 1 with the dataset dtype, shaped [batch_size, 1]. It requires exactly 2 classes.
	Binary ClassMode = iota

	// Sparse yields the class index as Int32, shaped [batch_size, 1].
	Sparse
)

// ImageExtensions accepted when scanning the class directories. Matching is case-insensitive.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".ppm", ".tif", ".tiff"}

const (
	DefaultImageSize = 256
	DefaultBatchSize = 32
)

// Dataset implements train.Dataset reading images from a directory of class subdirectories.
//
// Create it with NewDataset, configure it with the With* methods and finish with Done.
type Dataset struct {
	name, dir    string
	augmentation *augment.Config

	height, width int
	batchSize     int
	shuffle       bool
	seed          int64
	colorMode     augment.ColorMode
	classMode     ClassMode
	dtype         dtypes.DType
	infinite      bool
	classWeights  map[int]float64
	pool          *workerspool.Pool

	classNames []string
	filenames  []string // Relative to dir.
	labels     []int

	// mu protects the iteration state below.
	mu       sync.Mutex
	epoch    int
	batchIdx int
	order    []int
	err      error
}

var (
	AssertDatasetIsTrainDataset *Dataset
	_                           train.Dataset = AssertDatasetIsTrainDataset
)

// NewDataset scans dir for class subdirectories and their images.
//
// The augmentation configuration is applied to every image; use augment.EvalConfig() for no augmentation.
// If augmentation is nil, images are yielded with their original [0, 255] values.
//
// The defaults are: images resized to 256x256 grayscale, batches of 32, shuffled with seed 0,
// Binary labels in Float32 and a finite dataset (io.EOF at the end of each epoch).
// Configure it further with the With* methods, and call Done to validate the configuration.
func NewDataset(name, dir string, augmentation *augment.Config) (*Dataset, error) {
	ds := &Dataset{
		name:         name,
		dir:          dir,
		augmentation: augmentation,
		height:       DefaultImageSize,
		width:        DefaultImageSize,
		batchSize:    DefaultBatchSize,
		shuffle:      true,
		colorMode:    augment.Grayscale,
		classMode:    Binary,
		dtype:        dtypes.Float32,
		pool:         workerspool.New(0),
	}
	if ds.augmentation == nil {
		ds.augmentation = &augment.Config{}
	}
	var err error
	ds.classNames, ds.filenames, ds.labels, err = scanDirectory(dir)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("Found %d images belonging to %d classes in %q", len(ds.filenames), len(ds.classNames), dir)
	return ds, nil
}

// scanDirectory lists the class subdirectories of dir, in sorted order, and the image files within them.
func scanDirectory(dir string) (classNames, filenames []string, labels []int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		err = errors.Wrapf(err, "failed to list classes of image directory")
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			classNames = append(classNames, entry.Name())
		}
	}
	if len(classNames) == 0 {
		err = errors.Errorf("image directory %q has no class subdirectories", dir)
		return
	}
	for classIdx, className := range classNames {
		classDir := filepath.Join(dir, className)
		numFiles := len(filenames)
		filenames, err = scanClass(classDir, className, filenames)
		if err != nil {
			err = errors.Wrapf(err, "failed to scan class directory %q", classDir)
			return
		}
		for range len(filenames) - numFiles {
			labels = append(labels, classIdx)
		}
	}
	return
}

// scanClass appends to filenames the images in dirPath and, recursively, in its subdirectories.
// The images of a directory come before the ones of its subdirectories, each group in name order.
// relPath is dirPath relative to the dataset directory.
func scanClass(dirPath, relPath string, filenames []string) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return filenames, err
	}
	var subDirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			subDirs = append(subDirs, entry.Name())
			continue
		}
		if IsImageFile(entry.Name()) {
			filenames = append(filenames, filepath.Join(relPath, entry.Name()))
		}
	}
	for _, subDir := range subDirs {
		filenames, err = scanClass(filepath.Join(dirPath, subDir), filepath.Join(relPath, subDir), filenames)
		if err != nil {
			return filenames, err
		}
	}
	return filenames, nil
}

// IsImageFile returns whether the file name has one of the ImageExtensions.
func IsImageFile(fileName string) bool {
	return slices.Contains(ImageExtensions, strings.ToLower(filepath.Ext(fileName)))
}

// WithTargetSize sets the height and width all images are resized to.
func (ds *Dataset) WithTargetSize(height, width int) *Dataset {
	ds.height, ds.width = height, width
	return ds
}

// WithBatchSize sets the number of images per batch. The last batch of an epoch may be smaller.
func (ds *Dataset) WithBatchSize(batchSize int) *Dataset {
	ds.batchSize = batchSize
	return ds
}

// WithShuffle sets whether the images are shuffled at every epoch.
func (ds *Dataset) WithShuffle(shuffle bool) *Dataset {
	ds.shuffle = shuffle
	return ds
}

// WithSeed sets the seed for shuffling and augmentation. The same seed yields the same batches.
func (ds *Dataset) WithSeed(seed int64) *Dataset {
	ds.seed = seed
	return ds
}

// WithColorMode sets whether images are loaded as grayscale (1 channel) or RGB (3 channels).
func (ds *Dataset) WithColorMode(colorMode augment.ColorMode) *Dataset {
	ds.colorMode = colorMode
	return ds
}

// WithClassMode sets the type of labels yielded.
func (ds *Dataset) WithClassMode(classMode ClassMode) *Dataset {
	ds.classMode = classMode
	return ds
}

// WithDType sets the dtype of the images (and of Binary labels). Only Float32 and Float64 are supported.
func (ds *Dataset) WithDType(dtype dtypes.DType) *Dataset {
	ds.dtype = dtype
	return ds
}

// WithInfinite configures the dataset to loop over epochs indefinitely, instead of returning io.EOF
// at the end of each epoch. Use it with train.Loop.RunSteps.
func (ds *Dataset) WithInfinite(infinite bool) *Dataset {
	ds.infinite = infinite
	return ds
}

// WithClassWeights makes Yield return a second labels tensor with the weight of each example's class,
// shaped [batch_size, 1]. Classes missing from classWeights get weight 1.
// If classWeights is nil, no weights are yielded.
func (ds *Dataset) WithClassWeights(classWeights map[int]float64) *Dataset {
	ds.classWeights = classWeights
	return ds
}

// WithParallelism sets the number of images decoded in parallel. 0 uses the number of CPUs,
// 1 decodes sequentially in the goroutine calling Yield and -1 is unlimited.
func (ds *Dataset) WithParallelism(parallelism int) *Dataset {
	if parallelism == 1 {
		ds.pool = workerspool.Inline()
	} else {
		ds.pool = workerspool.New(parallelism)
	}
	return ds
}

// Done validates the configuration and prepares the first epoch.
func (ds *Dataset) Done() (*Dataset, error) {
	if ds.batchSize <= 0 {
		return nil, errors.Errorf("dataset %q: invalid batch size %d", ds.name, ds.batchSize)
	}
	if ds.height <= 0 || ds.width <= 0 {
		return nil, errors.Errorf("dataset %q: invalid target size %dx%d", ds.name, ds.height, ds.width)
	}
	if ds.dtype != dtypes.Float32 && ds.dtype != dtypes.Float64 {
		return nil, errors.Errorf("dataset %q: dtype %s not supported, use Float32 or Float64", ds.name, ds.dtype)
	}
	if ds.classMode == Binary && len(ds.classNames) != 2 {
		return nil, errors.Errorf("dataset %q: %s class mode requires 2 classes, found %d in %q: %q",
			ds.name, ds.classMode, len(ds.classNames), ds.dir, ds.classNames)
	}
	if ds.infinite && len(ds.filenames) == 0 {
		return nil, errors.Errorf("dataset %q: cannot loop indefinitely over an empty directory %q", ds.name, ds.dir)
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.lockedStartEpoch(0)
	return ds, nil
}

// Name implements train.Dataset.
func (ds *Dataset) Name() string { return ds.name }

// Dir returns the directory the images are read from.
func (ds *Dataset) Dir() string { return ds.dir }

// Samples returns the number of images found.
func (ds *Dataset) Samples() int { return len(ds.filenames) }

// BatchSize returns the configured batch size.
func (ds *Dataset) BatchSize() int { return ds.batchSize }

// NumBatches returns the number of batches per epoch, including the last partial batch.
func (ds *Dataset) NumBatches() int {
	return (len(ds.filenames) + ds.batchSize - 1) / ds.batchSize
}

// ClassNames returns the names of the classes, indexed by their label.
func (ds *Dataset) ClassNames() []string { return slices.Clone(ds.classNames) }

// ClassIndices maps each class name to its label.
func (ds *Dataset) ClassIndices() map[string]int {
	indices := make(map[string]int, len(ds.classNames))
	for idx, name := range ds.classNames {
		indices[name] = idx
	}
	return indices
}

// Filenames returns the image file names relative to Dir, in class and then file name order.
func (ds *Dataset) Filenames() []string { return slices.Clone(ds.filenames) }

// Labels returns the label of each image, in the same order as Filenames.
func (ds *Dataset) Labels() []int { return slices.Clone(ds.labels) }

// ClassCounts returns the number of images per label.
func (ds *Dataset) ClassCounts() map[int]int {
	counts := make(map[int]int, len(ds.classNames))
	for idx := range ds.classNames {
		counts[idx] = 0
	}
	for _, label := range ds.labels {
		counts[label]++
	}
	return counts
}

// Epoch returns the current epoch number: it starts at 0 and is incremented at every Reset,
// or every time an infinite dataset loops.
func (ds *Dataset) Epoch() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.epoch
}

// Reset implements train.Dataset. It starts a new epoch, reshuffled if shuffling is enabled.
func (ds *Dataset) Reset() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.lockedStartEpoch(ds.epoch + 1)
}

// lockedStartEpoch sets the order of the images for the epoch and rewinds to the first batch.
//
// It must be called with Dataset.mu acquired.
func (ds *Dataset) lockedStartEpoch(epoch int) {
	ds.epoch = epoch
	ds.batchIdx = 0
	ds.err = nil
	ds.order = ds.epochOrder(epoch)
}

// epochOrder returns the permutation of the images for the given epoch.
func (ds *Dataset) epochOrder(epoch int) []int {
	n := len(ds.filenames)
	if !ds.shuffle {
		order := make([]int, n)
		for ii := range order {
			order[ii] = ii
		}
		return order
	}
	return rand.New(rand.NewSource(ds.seed + int64(epoch))).Perm(n)
}
