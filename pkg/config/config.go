// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package config loads and saves the preprocessing configuration that accompanies a
// preprocessed chest X-ray dataset.
//
// The configuration lives in a file named FileName, in the parent directory of the
// dataset base path:
//
//	data/
//	├── preprocessing_config.json
//	└── preprocessed/          <- base path
//	    ├── train/{NORMAL,PNEUMONIA}
//	    ├── val/{NORMAL,PNEUMONIA}
//	    └── test/{NORMAL,PNEUMONIA}
//
// Its only required field is "class_weights", an object mapping stringified integer labels
// to the weight used to rebalance the loss.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
	"github.com/titanous/json5"
	"k8s.io/klog/v2"
)

const (
	// FileName of the preprocessing configuration.
	FileName = "preprocessing_config.json"

	// ClassWeightsKey is the JSON field holding the class weights.
	ClassWeightsKey = "class_weights"
)

// Preprocessing configuration of a dataset.
type Preprocessing struct {
	// ClassWeights maps the integer class label to its loss weight.
	ClassWeights map[int]float64

	// Extra holds the other top-level fields of the file, preserved on Save.
	Extra map[string]any
}

// Path returns the path of the configuration file associated to the dataset in basePath:
// it is a sibling of basePath.
func Path(basePath string) string {
	return filepath.Join(filepath.Dir(basePath), FileName)
}

// Load reads the preprocessing configuration from filePath.
//
// The file is parsed as JSON5 (a superset of JSON), so comments and trailing commas are accepted.
// The underlying I/O error is kept as the cause, so errors.Is(err, fs.ErrNotExist) works on missing files.
func Load(filePath string) (*Preprocessing, error) {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read preprocessing configuration")
	}
	return Parse(contents, filePath)
}

// Parse the contents of a preprocessing configuration. The source is only used for error messages.
func Parse(contents []byte, source string) (*Preprocessing, error) {
	var fields map[string]any
	if err := json5.Unmarshal(contents, &fields); err != nil {
		return nil, errors.Wrapf(err, "failed to parse preprocessing configuration %q", source)
	}
	if fields == nil {
		return nil, errors.Errorf("preprocessing configuration %q is not a JSON object", source)
	}
	rawWeights, found := fields[ClassWeightsKey]
	if !found {
		return nil, errors.Errorf("preprocessing configuration %q has no %q field", source, ClassWeightsKey)
	}
	weightsObject, ok := rawWeights.(map[string]any)
	if !ok {
		return nil, errors.Errorf("preprocessing configuration %q: %q must be an object, got %T",
			source, ClassWeightsKey, rawWeights)
	}

	p := &Preprocessing{
		ClassWeights: make(map[int]float64, len(weightsObject)),
		Extra:        make(map[string]any, len(fields)-1),
	}
	labelKeys := make(map[int]string, len(weightsObject))
	for key, value := range weightsObject {
		label, err := strconv.Atoi(key)
		if err != nil {
			return nil, errors.Wrapf(err, "preprocessing configuration %q: class weight key %q is not an integer",
				source, key)
		}
		if previous, found := labelKeys[label]; found {
			// Map iteration order is random: report the keys sorted so the message is stable.
			first, second := min(previous, key), max(previous, key)
			return nil, errors.Errorf("preprocessing configuration %q: class weight keys %q and %q are both label %d",
				source, first, second, label)
		}
		labelKeys[label] = key
		weight, ok := value.(float64)
		if !ok {
			return nil, errors.Errorf("preprocessing configuration %q: class weight for %q must be a number, got %T",
				source, key, value)
		}
		p.ClassWeights[label] = weight
	}
	for key, value := range fields {
		if key != ClassWeightsKey {
			p.Extra[key] = value
		}
	}
	klog.V(1).Infof("loaded %d class weights from %q", len(p.ClassWeights), source)
	return p, nil
}

// SortedLabels returns the labels with a class weight, in increasing order.
func (p *Preprocessing) SortedLabels() []int {
	labels := make([]int, 0, len(p.ClassWeights))
	for label := range p.ClassWeights {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	return labels
}

// Save writes the configuration to filePath as indented JSON.
// The file is replaced atomically.
func (p *Preprocessing) Save(filePath string) error {
	fields := make(map[string]any, len(p.Extra)+1)
	for key, value := range p.Extra {
		fields[key] = value
	}
	weights := make(map[string]float64, len(p.ClassWeights))
	for label, weight := range p.ClassWeights {
		weights[strconv.Itoa(label)] = weight
	}
	fields[ClassWeightsKey] = weights

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fields); err != nil {
		return errors.Wrapf(err, "failed to encode preprocessing configuration")
	}
	if err := renameio.WriteFile(filePath, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "failed to write preprocessing configuration to %q", filePath)
	}
	return nil
}

// BalancedClassWeights returns weights inversely proportional to the class frequencies:
//
//	weight[c] = numSamples / (numClasses * counts[c])
//
// So a perfectly balanced dataset gets weight 1 for every class.
func BalancedClassWeights(counts map[int]int) (map[int]float64, error) {
	if len(counts) == 0 {
		return nil, errors.New("cannot compute class weights without any class")
	}
	total := 0
	for label, count := range counts {
		if count <= 0 {
			return nil, errors.Errorf("cannot compute class weights: class %d has %d examples", label, count)
		}
		total += count
	}
	weights := make(map[int]float64, len(counts))
	for label, count := range counts {
		weights[label] = float64(total) / (float64(len(counts)) * float64(count))
	}
	return weights, nil
}
