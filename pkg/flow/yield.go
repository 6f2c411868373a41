// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package flow

import (
	"image"
	"io"
	"math/rand"
	"path/filepath"

	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/chestxray/cxrdata/pkg/augment"
)

// Yield implements train.Dataset. It returns:
//
//   - spec: not used, left as nil.
//   - inputs: one tensor with the images, shaped [batch_size, height, width, channels].
//   - labels: the labels tensor shaped [batch_size, 1] and, if WithClassWeights was set, the weights
//     tensor also shaped [batch_size, 1].
//
// The last batch of an epoch may have fewer examples. At the end of the epoch it returns io.EOF, unless
// the dataset is infinite, in which case it starts the next epoch.
//
// Errors reading images are sticky: they are returned until Reset is called.
func (ds *Dataset) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	ds.mu.Lock()
	if ds.err != nil {
		err = ds.err
		ds.mu.Unlock()
		return
	}
	if ds.order == nil {
		ds.mu.Unlock()
		err = errors.Errorf("dataset %q not initialized, Done() was not called", ds.name)
		return
	}
	numBatches := ds.NumBatches()
	if ds.batchIdx >= numBatches {
		if !ds.infinite {
			ds.mu.Unlock()
			err = io.EOF
			return
		}
		ds.lockedStartEpoch(ds.epoch + 1)
	}
	epoch, indices := ds.epoch, ds.batchIndices(ds.order, ds.batchIdx)
	ds.batchIdx++
	ds.mu.Unlock()

	inputs, labels, err = ds.loadBatch(epoch, indices)
	if err != nil {
		ds.mu.Lock()
		if ds.epoch == epoch {
			ds.err = err
		}
		ds.mu.Unlock()
	}
	return
}

// Batch returns the batch number batchIdx of the current epoch, without changing the position of Yield.
func (ds *Dataset) Batch(batchIdx int) (inputs, labels []*tensors.Tensor, err error) {
	ds.mu.Lock()
	if ds.order == nil {
		ds.mu.Unlock()
		return nil, nil, errors.Errorf("dataset %q not initialized, Done() was not called", ds.name)
	}
	if batchIdx < 0 || batchIdx >= ds.NumBatches() {
		ds.mu.Unlock()
		return nil, nil, errors.Errorf("dataset %q: batch %d out of range, there are %d batches",
			ds.name, batchIdx, ds.NumBatches())
	}
	epoch, indices := ds.epoch, ds.batchIndices(ds.order, batchIdx)
	ds.mu.Unlock()
	return ds.loadBatch(epoch, indices)
}

// batchIndices returns the indices of the images of batch batchIdx given the epoch order.
func (ds *Dataset) batchIndices(order []int, batchIdx int) []int {
	start := batchIdx * ds.batchSize
	end := min(start+ds.batchSize, len(order))
	return order[start:end]
}

// exampleRNG returns the random number generator used to augment one image in one epoch.
// It depends only on the seed, the epoch and the image, not on the order images are processed.
func (ds *Dataset) exampleRNG(epoch, imageIdx int) *rand.Rand {
	x := uint64(ds.seed)
	x ^= uint64(epoch)*0x9E3779B97F4A7C15 + uint64(imageIdx)*0xBF58476D1CE4E5B9
	// splitmix64 finalizer.
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	x ^= x >> 31
	return rand.New(rand.NewSource(int64(x)))
}

// LoadImage reads, resizes and transforms image imageIdx (an index into Filenames) as it would be
// yielded in the given epoch.
func (ds *Dataset) LoadImage(epoch, imageIdx int) (*augment.Image, error) {
	if imageIdx < 0 || imageIdx >= len(ds.filenames) {
		return nil, errors.Errorf("dataset %q: image %d out of range, there are %d images",
			ds.name, imageIdx, len(ds.filenames))
	}
	filePath := filepath.Join(ds.dir, ds.filenames[imageIdx])
	img, err := augment.LoadFile(filePath, ds.colorMode, ds.width, ds.height)
	if err != nil {
		return nil, errors.WithMessagef(err, "dataset %q", ds.name)
	}
	return ds.augmentation.Transform(img, ds.exampleRNG(epoch, imageIdx)), nil
}

// loadBatch reads and transforms the given images in parallel, and converts them to tensors.
func (ds *Dataset) loadBatch(epoch int, indices []int) (inputs, labels []*tensors.Tensor, err error) {
	images := make([]*augment.Image, len(indices))
	err = ds.pool.ForEach(len(indices), func(ii int) error {
		var loadErr error
		images[ii], loadErr = ds.LoadImage(epoch, indices[ii])
		return loadErr
	})
	if err != nil {
		return
	}

	var imagesT *tensors.Tensor
	switch ds.dtype {
	case dtypes.Float32:
		imagesT = imagesToTensor[float32](images, ds.dtype)
	case dtypes.Float64:
		imagesT = imagesToTensor[float64](images, ds.dtype)
	default:
		err = errors.Errorf("dataset %q: dtype %s not supported", ds.name, ds.dtype)
		return
	}
	inputs = []*tensors.Tensor{imagesT}

	batchLabels := make([]int, len(indices))
	for ii, imageIdx := range indices {
		batchLabels[ii] = ds.labels[imageIdx]
	}
	labels = []*tensors.Tensor{ds.labelsTensor(batchLabels)}
	if ds.classWeights != nil {
		labels = append(labels, ds.weightsTensor(batchLabels))
	}
	return
}

func (ds *Dataset) labelsTensor(batchLabels []int) *tensors.Tensor {
	n := len(batchLabels)
	if ds.classMode == Sparse {
		data := make([]int32, n)
		for ii, label := range batchLabels {
			data[ii] = int32(label)
		}
		return tensors.FromFlatDataAndDimensions(data, n, 1)
	}
	values := make([]float64, n)
	for ii, label := range batchLabels {
		values[ii] = float64(label)
	}
	return floatsTensor(values, ds.dtype)
}

func (ds *Dataset) weightsTensor(batchLabels []int) *tensors.Tensor {
	values := make([]float64, len(batchLabels))
	for ii, label := range batchLabels {
		weight, found := ds.classWeights[label]
		if !found {
			weight = 1
		}
		values[ii] = weight
	}
	return floatsTensor(values, ds.dtype)
}

// floatsTensor converts values to a tensor of the given float dtype shaped [len(values), 1].
func floatsTensor(values []float64, dtype dtypes.DType) *tensors.Tensor {
	if dtype == dtypes.Float64 {
		return tensors.FromFlatDataAndDimensions(values, len(values), 1)
	}
	data := make([]float32, len(values))
	for ii, v := range values {
		data[ii] = float32(v)
	}
	return tensors.FromFlatDataAndDimensions(data, len(values), 1)
}

// imagesToTensor converts a batch of images of the same size to a tensor shaped
// [batch_size, height, width, channels].
func imagesToTensor[T float32 | float64](images []*augment.Image, dtype dtypes.DType) *tensors.Tensor {
	first := images[0]
	t := tensors.FromShape(shapes.Make(dtype, len(images), first.Height, first.Width, first.Channels))
	tensors.MustMutableFlatData[T](t, func(flat []T) {
		pos := 0
		for _, img := range images {
			for _, v := range img.Pix {
				flat[pos] = T(v)
				pos++
			}
		}
	})
	return t
}

// TensorToImages converts a batch of images yielded by a Dataset back to Go images.
// maxValue is the pixel value mapped to white: 1 for rescaled images, 255 otherwise.
func TensorToImages(imagesT *tensors.Tensor, maxValue float64) ([]image.Image, error) {
	dims := imagesT.Shape().Dimensions
	if imagesT.Rank() != 4 || (dims[3] != 1 && dims[3] != 3) {
		return nil, errors.Errorf("images tensor must be shaped [batch_size, height, width, 1 or 3], got %s",
			imagesT.Shape())
	}
	var flat []float32
	switch imagesT.DType() {
	case dtypes.Float32:
		flat = tensors.MustCopyFlatData[float32](imagesT)
	case dtypes.Float64:
		for _, v := range tensors.MustCopyFlatData[float64](imagesT) {
			flat = append(flat, float32(v))
		}
	default:
		return nil, errors.Errorf("images tensor dtype %s not supported", imagesT.DType())
	}
	batchSize, height, width, channels := dims[0], dims[1], dims[2], dims[3]
	imageSize := height * width * channels
	images := make([]image.Image, batchSize)
	for ii := range images {
		img := &augment.Image{
			Width:    width,
			Height:   height,
			Channels: channels,
			Pix:      flat[ii*imageSize : (ii+1)*imageSize],
		}
		images[ii] = img.ToImage(maxValue)
	}
	return images, nil
}
