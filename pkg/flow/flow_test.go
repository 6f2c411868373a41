package flow

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chestxray/cxrdata/pkg/augment"
)

// writeGrayPNG writes a width x height image filled with value.
func writeGrayPNG(t *testing.T, filePath string, width, height int, value uint8) {
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: value})
		}
	}
	f := must.M1(os.Create(filePath))
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

// createImageTree creates a directory with 5 NORMAL and 2 PNEUMONIA images, plus files to be ignored.
// Each image is uniformly filled with a distinct value: 10+i for NORMAL and 100+i for PNEUMONIA.
func createImageTree(t *testing.T) string {
	dir := t.TempDir()
	for ii := 0; ii < 4; ii++ {
		writeGrayPNG(t, filepath.Join(dir, "NORMAL", "img"+string(rune('a'+ii))+".png"), 6, 4, uint8(10+ii))
	}
	writeGrayPNG(t, filepath.Join(dir, "NORMAL", "nested", "imge.PNG"), 6, 4, 14)
	writeGrayPNG(t, filepath.Join(dir, "PNEUMONIA", "p0.png"), 5, 5, 100)
	writeGrayPNG(t, filepath.Join(dir, "PNEUMONIA", "p1.png"), 3, 7, 101)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PNEUMONIA", "notes.txt"), []byte("ignore me"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("not a class"), 0644))
	return dir
}

func newEvalDataset(t *testing.T, dir string, batchSize int) *Dataset {
	return must.M1(must.M1(NewDataset("eval", dir, augment.EvalConfig())).
		WithTargetSize(4, 4).
		WithBatchSize(batchSize).
		WithShuffle(false).
		Done())
}

// imageIDs returns the fill value of each image in a batch, assuming images were rescaled by 1/255.
func imageIDs(t *testing.T, imagesT *tensors.Tensor) []int {
	dims := imagesT.Shape().Dimensions
	flat := tensors.MustCopyFlatData[float32](imagesT)
	imageSize := dims[1] * dims[2] * dims[3]
	ids := make([]int, dims[0])
	for ii := range ids {
		ids[ii] = int(math.Round(float64(flat[ii*imageSize]) * 255))
	}
	return ids
}

func TestScan(t *testing.T) {
	dir := createImageTree(t)
	ds := newEvalDataset(t, dir, 3)
	assert.Equal(t, "eval", ds.Name())
	assert.Equal(t, []string{"NORMAL", "PNEUMONIA"}, ds.ClassNames())
	assert.Equal(t, map[string]int{"NORMAL": 0, "PNEUMONIA": 1}, ds.ClassIndices())
	assert.Equal(t, []string{
		filepath.Join("NORMAL", "imga.png"),
		filepath.Join("NORMAL", "imgb.png"),
		filepath.Join("NORMAL", "imgc.png"),
		filepath.Join("NORMAL", "imgd.png"),
		filepath.Join("NORMAL", "nested", "imge.PNG"),
		filepath.Join("PNEUMONIA", "p0.png"),
		filepath.Join("PNEUMONIA", "p1.png"),
	}, ds.Filenames())
	assert.Equal(t, []int{0, 0, 0, 0, 0, 1, 1}, ds.Labels())
	assert.Equal(t, map[int]int{0: 5, 1: 2}, ds.ClassCounts())
	assert.Equal(t, 7, ds.Samples())
	assert.Equal(t, 3, ds.NumBatches())
}

func TestScanOrder(t *testing.T) {
	// Files of a directory come before its subdirectories, even when they sort after them.
	dir := t.TempDir()
	writeGrayPNG(t, filepath.Join(dir, "A", "b.png"), 2, 2, 1)
	writeGrayPNG(t, filepath.Join(dir, "A", "a", "x.png"), 2, 2, 2)
	writeGrayPNG(t, filepath.Join(dir, "A", "a", "z", "y.png"), 2, 2, 3)
	writeGrayPNG(t, filepath.Join(dir, "A", "a", "w.png"), 2, 2, 4)
	writeGrayPNG(t, filepath.Join(dir, "A", "c", "v.png"), 2, 2, 5)
	writeGrayPNG(t, filepath.Join(dir, "B", "u.png"), 2, 2, 6)
	ds := must.M1(NewDataset("order", dir, nil))
	assert.Equal(t, []string{
		filepath.Join("A", "b.png"),
		filepath.Join("A", "a", "w.png"),
		filepath.Join("A", "a", "x.png"),
		filepath.Join("A", "a", "z", "y.png"),
		filepath.Join("A", "c", "v.png"),
		filepath.Join("B", "u.png"),
	}, ds.Filenames())
	assert.Equal(t, []int{0, 0, 0, 0, 0, 1}, ds.Labels())
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.png", "b.JPG", "c.jpeg", "d.bmp", "e.ppm", "f.tif", "g.TIFF"} {
		assert.True(t, IsImageFile(name), name)
	}
	for _, name := range []string{"a.txt", "b", "c.gif", "png"} {
		assert.False(t, IsImageFile(name), name)
	}
}

func TestYieldEval(t *testing.T) {
	ds := newEvalDataset(t, createImageTree(t), 3)
	var gotIDs []int
	var gotLabels []float32
	for batchIdx := 0; batchIdx < 3; batchIdx++ {
		spec, inputs, labels, err := ds.Yield()
		require.NoError(t, err)
		assert.Nil(t, spec)
		require.Len(t, inputs, 1)
		require.Len(t, labels, 1)
		wantBatch := 3
		if batchIdx == 2 {
			wantBatch = 1
		}
		assert.Equal(t, []int{wantBatch, 4, 4, 1}, inputs[0].Shape().Dimensions)
		assert.Equal(t, dtypes.Float32, inputs[0].DType())
		assert.Equal(t, []int{wantBatch, 1}, labels[0].Shape().Dimensions)
		for _, v := range tensors.MustCopyFlatData[float32](inputs[0]) {
			assert.GreaterOrEqual(t, v, float32(0))
			assert.LessOrEqual(t, v, float32(1))
		}
		gotIDs = append(gotIDs, imageIDs(t, inputs[0])...)
		gotLabels = append(gotLabels, tensors.MustCopyFlatData[float32](labels[0])...)
	}
	assert.Equal(t, []int{10, 11, 12, 13, 14, 100, 101}, gotIDs)
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 1, 1}, gotLabels)

	_, _, _, err := ds.Yield()
	require.ErrorIs(t, err, io.EOF)
	_, _, _, err = ds.Yield()
	require.ErrorIs(t, err, io.EOF)

	ds.Reset()
	assert.Equal(t, 1, ds.Epoch())
	_, inputs, _, err := ds.Yield()
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11, 12}, imageIDs(t, inputs[0]))
}

func TestShuffle(t *testing.T) {
	dir := createImageTree(t)
	newShuffled := func(seed int64) *Dataset {
		return must.M1(must.M1(NewDataset("train", dir, augment.EvalConfig())).
			WithTargetSize(4, 4).WithBatchSize(2).WithSeed(seed).Done())
	}
	readEpoch := func(ds *Dataset) (ids []int) {
		for {
			_, inputs, _, err := ds.Yield()
			if err == io.EOF {
				return
			}
			require.NoError(t, err)
			ids = append(ids, imageIDs(t, inputs[0])...)
		}
	}

	ds1, ds2 := newShuffled(42), newShuffled(42)
	epoch0 := readEpoch(ds1)
	assert.Equal(t, epoch0, readEpoch(ds2))
	sorted := append([]int(nil), epoch0...)
	sort.Ints(sorted)
	assert.Equal(t, []int{10, 11, 12, 13, 14, 100, 101}, sorted, "each image must be yielded once per epoch")

	ds1.Reset()
	ds2.Reset()
	epoch1 := readEpoch(ds1)
	assert.Equal(t, epoch1, readEpoch(ds2))
	assert.ElementsMatch(t, epoch0, epoch1)
}

func TestInfinite(t *testing.T) {
	ds := must.M1(must.M1(NewDataset("train", createImageTree(t), augment.EvalConfig())).
		WithTargetSize(4, 4).WithBatchSize(4).WithInfinite(true).Done())
	require.Equal(t, 2, ds.NumBatches())
	for range 5 {
		_, inputs, _, err := ds.Yield()
		require.NoError(t, err)
		require.NotEmpty(t, inputs)
	}
	assert.Equal(t, 2, ds.Epoch())
}

func TestClassWeightsAndDTypes(t *testing.T) {
	ds := must.M1(must.M1(NewDataset("eval", createImageTree(t), augment.EvalConfig())).
		WithTargetSize(4, 4).WithBatchSize(7).WithShuffle(false).
		WithDType(dtypes.Float64).
		WithClassWeights(map[int]float64{0: 0.7, 1: 1.75}).
		Done())
	_, inputs, labels, err := ds.Yield()
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float64, inputs[0].DType())
	require.Len(t, labels, 2)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 1, 1}, tensors.MustCopyFlatData[float64](labels[0]))
	assert.Equal(t, []float64{0.7, 0.7, 0.7, 0.7, 0.7, 1.75, 1.75}, tensors.MustCopyFlatData[float64](labels[1]))
	assert.Equal(t, []int{7, 1}, labels[1].Shape().Dimensions)
}

func TestClassModes(t *testing.T) {
	dir := createImageTree(t)
	writeGrayPNG(t, filepath.Join(dir, "COVID", "c0.png"), 4, 4, 200)

	_, err := must.M1(NewDataset("eval", dir, augment.EvalConfig())).Done()
	require.Error(t, err, "binary class mode with 3 classes should fail")
	assert.Contains(t, err.Error(), Binary.String())
	assert.Equal(t, []string{"binary", "sparse"}, ClassModeStrings())

	ds := must.M1(must.M1(NewDataset("eval", dir, augment.EvalConfig())).
		WithTargetSize(4, 4).WithBatchSize(8).WithShuffle(false).WithClassMode(Sparse).Done())
	assert.Equal(t, []string{"COVID", "NORMAL", "PNEUMONIA"}, ds.ClassNames())
	_, _, labels, err := ds.Yield()
	require.NoError(t, err)
	assert.Equal(t, dtypes.Int32, labels[0].DType())
	assert.Equal(t, []int32{0, 1, 1, 1, 1, 1, 2, 2}, tensors.MustCopyFlatData[int32](labels[0]))
}

func TestConfigurationErrors(t *testing.T) {
	_, err := NewDataset("missing", filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)

	_, err = NewDataset("empty", t.TempDir(), nil)
	require.Error(t, err)

	dir := createImageTree(t)
	_, err = must.M1(NewDataset("eval", dir, nil)).WithBatchSize(0).Done()
	require.Error(t, err)
	_, err = must.M1(NewDataset("eval", dir, nil)).WithTargetSize(0, 10).Done()
	require.Error(t, err)
	_, err = must.M1(NewDataset("eval", dir, nil)).WithDType(dtypes.Int64).Done()
	require.Error(t, err)

	emptyClasses := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(emptyClasses, "NORMAL"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(emptyClasses, "PNEUMONIA"), 0755))
	_, err = must.M1(NewDataset("empty", emptyClasses, nil)).WithInfinite(true).Done()
	require.Error(t, err)
	ds := must.M1(must.M1(NewDataset("empty", emptyClasses, nil)).Done())
	assert.Equal(t, 0, ds.NumBatches())
	_, _, _, err = ds.Yield()
	require.ErrorIs(t, err, io.EOF)

	notDone := must.M1(NewDataset("eval", dir, nil))
	_, _, _, err = notDone.Yield()
	require.Error(t, err)
}

func TestYieldBadImage(t *testing.T) {
	dir := createImageTree(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PNEUMONIA", "p2.png"), []byte("corrupted"), 0644))
	ds := newEvalDataset(t, dir, 4)
	_, _, _, err := ds.Yield()
	require.NoError(t, err)
	_, _, _, err = ds.Yield()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p2.png")
	_, _, _, err2 := ds.Yield()
	assert.Equal(t, err, err2, "errors must be sticky until Reset")

	ds.Reset()
	_, _, _, err = ds.Yield()
	require.NoError(t, err)
}

func TestAugmentationIsDeterministic(t *testing.T) {
	dir := createImageTree(t)
	newTrain := func(parallelism int) *Dataset {
		cfg := augment.TrainingConfig()
		cfg.FillMode = augment.FillConstant
		return must.M1(must.M1(NewDataset("train", dir, cfg)).
			WithTargetSize(8, 8).WithBatchSize(7).WithSeed(3).WithParallelism(parallelism).Done())
	}
	sequential, parallel := newTrain(1), newTrain(-1)
	assert.Equal(t, 0, sequential.pool.MaxParallelism(), "parallelism 1 decodes in the calling goroutine")
	inputs1, _, err := sequential.Batch(0)
	require.NoError(t, err)
	inputs2, _, err := parallel.Batch(0)
	require.NoError(t, err)
	assert.Equal(t, tensors.MustCopyFlatData[float32](inputs1[0]), tensors.MustCopyFlatData[float32](inputs2[0]))

	// Batch doesn't move the Yield position.
	_, inputs3, _, err := sequential.Yield()
	require.NoError(t, err)
	assert.Equal(t, tensors.MustCopyFlatData[float32](inputs1[0]), tensors.MustCopyFlatData[float32](inputs3[0]))

	_, _, err = sequential.Batch(1)
	require.Error(t, err)
}

func TestTensorToImages(t *testing.T) {
	ds := newEvalDataset(t, createImageTree(t), 2)
	_, inputs, _, err := ds.Yield()
	require.NoError(t, err)
	images := must.M1(TensorToImages(inputs[0], 1))
	require.Len(t, images, 2)
	gray, ok := images[1].(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 4, 4), gray.Bounds())
	assert.Equal(t, uint8(11), gray.GrayAt(3, 3).Y)

	_, err = TensorToImages(tensors.FromValue([]float32{1, 2}), 1)
	require.Error(t, err)
}
