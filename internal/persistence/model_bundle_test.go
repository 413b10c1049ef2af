package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knntune/internal/models"
	"knntune/internal/preprocessing"
)

func fittedKNN(t *testing.T) *models.KNN {
	t.Helper()

	X := [][]decimal.Decimal{
		{decimal.NewFromInt(1)},
		{decimal.NewFromInt(2)},
		{decimal.NewFromInt(10)},
		{decimal.NewFromInt(11)},
	}
	y := []int{0, 0, 1, 1}

	knn := models.NewKNN(1, "euclidean")
	require.NoError(t, knn.Fit(X, y))
	return knn
}

func TestModelBundle_SaveLoadRoundTrip(t *testing.T) {
	knn := fittedKNN(t)

	encoder := preprocessing.NewLabelEncoder()
	_, err := encoder.FitTransform([]string{"low", "low", "high", "high"})
	require.NoError(t, err)

	bundle := NewModelBundle(knn)
	bundle.LabelEncoder = encoder
	bundle.Metadata.Dataset = "train.csv"
	bundle.Metadata.BestK = 1
	bundle.Metadata.Threshold = 0.42
	bundle.Metadata.AUC = 0.98
	bundle.Metadata.PositiveLabel = "high"
	bundle.Metadata.TrainingTime = 3 * time.Second

	path := filepath.Join(t.TempDir(), "knn.model")
	require.NoError(t, bundle.Save(path))

	loaded, err := LoadModelBundle(path)
	require.NoError(t, err)

	assert.Equal(t, "KNN", loaded.Metadata.ModelName)
	assert.Equal(t, 1, loaded.Metadata.BestK)
	assert.Equal(t, 0.42, loaded.Metadata.Threshold)
	assert.Equal(t, "high", loaded.Metadata.PositiveLabel)
	assert.Equal(t, encoder.ClassToInt, loaded.LabelEncoder.ClassToInt)

	// the restored model scores like the original
	query := [][]decimal.Decimal{{decimal.NewFromInt(10)}}
	assert.Equal(t, knn.Predict(query), loaded.Model.Predict(query))
}

func TestModelBundle_LoadMissingFile(t *testing.T) {
	_, err := LoadModelBundle(filepath.Join(t.TempDir(), "missing.model"))
	assert.Error(t, err)
}

func TestModelBundle_SaveMetadata(t *testing.T) {
	bundle := NewModelBundle(fittedKNN(t))
	bundle.Metadata.Dataset = "train.csv"
	bundle.Metadata.BestK = 1
	bundle.Metadata.Threshold = 0.5

	path := filepath.Join(t.TempDir(), "summary.txt")
	require.NoError(t, bundle.SaveMetadata(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Best k: 1")
	assert.Contains(t, string(content), "Dataset: train.csv")
}
