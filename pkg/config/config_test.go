package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, contents string) string {
	filePath := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(filePath, []byte(contents), 0644))
	return filePath
}

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/data/project", FileName), Path("/data/project/preprocessed"))
	assert.Equal(t, filepath.Join("/data/project/preprocessed", FileName), Path("/data/project/preprocessed/"))
	assert.Equal(t, FileName, Path("preprocessed"))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	filePath := writeFile(t, dir, `{
		"class_weights": {"0": 1.9448173005219984, "1": 0.6730322580645162},
		"img_size": 224,
		"classes": ["NORMAL", "PNEUMONIA"]
	}`)
	p := must.M1(Load(filePath))
	assert.Equal(t, map[int]float64{0: 1.9448173005219984, 1: 0.6730322580645162}, p.ClassWeights)
	assert.Equal(t, []int{0, 1}, p.SortedLabels())
	assert.Equal(t, float64(224), p.Extra["img_size"])
	assert.NotContains(t, p.Extra, ClassWeightsKey)
}

func TestLoadJSON5(t *testing.T) {
	filePath := writeFile(t, t.TempDir(), `{
		// Computed from the training split.
		class_weights: {"0": 2.0, "1": 0.5,},
	}`)
	p := must.M1(Load(filePath))
	assert.Equal(t, map[int]float64{0: 2, 1: 0.5}, p.ClassWeights)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "missing file error should keep its cause: %v", err)

	for name, contents := range map[string]string{
		"malformed":       `{"class_weights": {"0": 1.0`,
		"no weights":      `{"img_size": 224}`,
		"non-integer":     `{"class_weights": {"normal": 1.0}}`,
		"non-number":      `{"class_weights": {"0": "heavy"}}`,
		"weights-array":   `{"class_weights": [1.0, 2.0]}`,
		"not-an-object":   `[1, 2, 3]`,
		"literal-null":    `null`,
		"float-key":       `{"class_weights": {"1.5": 1.0}}`,
		"duplicate-label": `{"class_weights": {"1": 0.5, "01": 9.0}}`,
	} {
		t.Run(name, func(t *testing.T) {
			filePath := writeFile(t, t.TempDir(), contents)
			_, err := Load(filePath)
			require.Error(t, err)
		})
	}
}

func TestLoadDuplicateLabels(t *testing.T) {
	// "1" and "01" both parse to label 1: accepting either would make the weight depend on map order.
	filePath := writeFile(t, t.TempDir(), `{"class_weights": {"1": 0.5, "01": 9.0, "0": 2.0}}`)
	for range 5 {
		_, err := Load(filePath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `class weight keys "01" and "1" are both label 1`)
	}
}

func TestSaveAndLoad(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), FileName)
	p := &Preprocessing{
		ClassWeights: map[int]float64{0: 1.5, 1: 0.75},
		Extra:        map[string]any{"img_size": float64(224)},
	}
	require.NoError(t, p.Save(filePath))
	loaded := must.M1(Load(filePath))
	assert.Equal(t, p.ClassWeights, loaded.ClassWeights)
	assert.Equal(t, p.Extra, loaded.Extra)
}

func TestBalancedClassWeights(t *testing.T) {
	weights := must.M1(BalancedClassWeights(map[int]int{0: 1341, 1: 3875}))
	assert.InDelta(t, 5216.0/(2*1341.0), weights[0], 1e-12)
	assert.InDelta(t, 5216.0/(2*3875.0), weights[1], 1e-12)

	weights = must.M1(BalancedClassWeights(map[int]int{0: 10, 1: 10}))
	assert.Equal(t, map[int]float64{0: 1, 1: 1}, weights)

	_, err := BalancedClassWeights(nil)
	require.Error(t, err)
	_, err = BalancedClassWeights(map[int]int{0: 10, 1: 0})
	require.Error(t, err)
}
