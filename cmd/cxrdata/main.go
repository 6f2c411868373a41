// cxrdata inspects a preprocessed chest X-ray dataset and prepares it for training.
//
// The dataset base path (-data) must contain the train, val and test subdirectories, each with one
// subdirectory per class. The preprocessing configuration with the class weights is read from (or
// written to, with -weights) the parent directory of the base path.
//
// Examples:
//
//	cxrdata -data ~/work/pneumonia/data/preprocessed              # Summary of the splits and class weights.
//	cxrdata -data ~/work/pneumonia/data/preprocessed -weights     # Compute and save balanced class weights.
//	cxrdata -data ~/work/pneumonia/data/preprocessed -preview /tmp/preview -preview_count 16
//	cxrdata -data ~/work/pneumonia/data/preprocessed -iterate     # Time one epoch of each split.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/chestxray/cxrdata/pkg/config"
	"github.com/chestxray/cxrdata/pkg/loader"
)

var (
	flagDataDir     = flag.String("data", "~/work/pneumonia/data/preprocessed", "Base path of the dataset, with train, val and test subdirectories.")
	flagImageSize   = flag.Int("img_size", loader.DefaultImageSize, "Height and width images are resized to.")
	flagBatchSize   = flag.Int("batch", loader.DefaultBatchSize, "Batch size.")
	flagSeed        = flag.Int64("seed", loader.DefaultSeed, "Seed for shuffling and augmentation of the training data.")
	flagParallelism = flag.Int("parallelism", 0, "Number of images decoded in parallel. 0 uses the number of CPUs.")

	flagWeights      = flag.Bool("weights", false, fmt.Sprintf("Compute balanced class weights from the train split and save them to %q.", config.FileName))
	flagPreview      = flag.String("preview", "", "If set, directory where to save augmented training images as PNG.")
	flagPreviewCount = flag.Int("preview_count", 16, "Number of augmented training images to save with -preview.")
	flagIterate      = flag.Bool("iterate", false, "Read one epoch of every split, reporting the time it takes.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	basePath, err := fsutil.ReplaceTildeInDir(*flagDataDir)
	if err != nil {
		klog.Fatalf("Invalid -data=%q: %+v", *flagDataDir, err)
	}

	if *flagWeights {
		if err := saveBalancedWeights(basePath); err != nil {
			klog.Fatalf("Failed to compute class weights: %+v", err)
		}
	}

	l, err := loader.New(basePath, *flagImageSize, *flagBatchSize, *flagSeed)
	if err != nil {
		klog.Errorf("Failed to load dataset configuration: %+v", err)
		klog.Errorf("Use -weights to create %q from the train split.", config.Path(basePath))
		os.Exit(1)
	}
	l.WithParallelism(*flagParallelism)

	if err := printSummary(os.Stdout, l); err != nil {
		klog.Fatalf("Failed to scan dataset: %+v", err)
	}
	if *flagPreview != "" {
		if err := savePreview(l, *flagPreview, *flagPreviewCount); err != nil {
			klog.Fatalf("Failed to save preview: %+v", err)
		}
	}
	if *flagIterate {
		if err := iterateAll(l); err != nil {
			klog.Fatalf("Failed to read dataset: %+v", err)
		}
	}
}

// saveBalancedWeights counts the images of the train split, and saves the balanced class weights to the
// preprocessing configuration, preserving its other fields if it already exists.
func saveBalancedWeights(basePath string) error {
	counts, err := trainClassCounts(basePath)
	if err != nil {
		return err
	}
	weights, err := config.BalancedClassWeights(counts)
	if err != nil {
		return err
	}
	configPath := config.Path(basePath)
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = &config.Preprocessing{Extra: make(map[string]any)}
	}
	cfg.ClassWeights = weights
	if err = cfg.Save(configPath); err != nil {
		return err
	}
	klog.Infof("Saved class weights %v to %q", weights, configPath)
	return nil
}
