package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/chestxray/cxrdata/pkg/flow"
	"github.com/chestxray/cxrdata/pkg/loader"
)

// trainClassCounts scans the train split and returns the number of images per label.
func trainClassCounts(basePath string) (map[int]int, error) {
	ds, err := flow.NewDataset(loader.TrainDir, filepath.Join(basePath, loader.TrainDir), nil)
	if err != nil {
		return nil, err
	}
	return ds.ClassCounts(), nil
}

// savePreview saves the first count augmented training images (as yielded in the first epoch) to dir.
func savePreview(l *loader.Loader, dir string, count int) error {
	trainDS, _, _, _, err := l.Generators()
	if err != nil {
		return err
	}
	if err = os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create preview directory")
	}
	classNames := trainDS.ClassNames()
	saved := 0
	for saved < count {
		_, inputs, labels, err := trainDS.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		images, err := flow.TensorToImages(inputs[0], 1)
		if err != nil {
			return err
		}
		labelsAsInts := labelsToInts(labels[0])
		for ii, img := range images {
			if saved >= count {
				break
			}
			imgPath := filepath.Join(dir, fmt.Sprintf("%04d_%s.png", saved, classNames[labelsAsInts[ii]]))
			if err = imaging.Save(img, imgPath); err != nil {
				return errors.Wrapf(err, "failed to save preview image")
			}
			saved++
		}
		for _, t := range append(inputs, labels...) {
			t.FinalizeAll()
		}
	}
	klog.Infof("Saved %d augmented images to %q", saved, dir)
	return nil
}

// iterateAll reads one epoch of each split, with a progress bar.
func iterateAll(l *loader.Loader) error {
	trainDS, valDS, testDS, _, err := l.Generators()
	if err != nil {
		return err
	}
	for _, ds := range []*flow.Dataset{trainDS, valDS, testDS} {
		if err = iterate(ds); err != nil {
			return err
		}
	}
	return nil
}

func iterate(ds *flow.Dataset) error {
	pBar := progressbar.NewOptions(ds.Samples(),
		progressbar.OptionSetDescription(ds.Name()),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
	)
	start := time.Now()
	numImages := 0
	for {
		_, inputs, labels, err := ds.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		batchSize := inputs[0].Shape().Dimensions[0]
		numImages += batchSize
		_ = pBar.Add(batchSize)
		for _, t := range append(inputs, labels...) {
			t.FinalizeAll()
		}
	}
	_ = pBar.Close()
	elapsed := time.Since(start)
	fmt.Printf("\n%s: %s images in %s (%.1f images/s)\n", ds.Name(), humanize.Comma(int64(numImages)),
		elapsed.Round(time.Millisecond), float64(numImages)/max(elapsed.Seconds(), 1e-9))
	return nil
}

// labelsToInts converts a Binary labels tensor to ints.
func labelsToInts(labelsT *tensors.Tensor) []int {
	var ints []int
	switch v := labelsT.Value().(type) {
	case [][]float32:
		for _, row := range v {
			ints = append(ints, int(row[0]))
		}
	case [][]float64:
		for _, row := range v {
			ints = append(ints, int(row[0]))
		}
	}
	return ints
}
