package preprocessing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelEncoder_FirstSeenOrder(t *testing.T) {
	encoder := NewLabelEncoder()
	encoded, err := encoder.FitTransform([]string{"benign", "malignant", "benign", "malignant"})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 0, 1}, encoded)
	assert.Equal(t, 2, encoder.NumClasses())
}

func TestLabelEncoder_RoundTrip(t *testing.T) {
	labels := []string{"no", "yes", "yes", "no", "yes"}

	encoder := NewLabelEncoder()
	encoded, err := encoder.FitTransform(labels)
	require.NoError(t, err)

	decoded, err := encoder.InverseTransform(encoded)
	require.NoError(t, err)
	assert.Equal(t, labels, decoded)
}

func TestLabelEncoder_UnknownLabel(t *testing.T) {
	encoder := NewLabelEncoder()
	_, err := encoder.FitTransform([]string{"a", "b"})
	require.NoError(t, err)

	_, err = encoder.Transform([]string{"c"})
	assert.Error(t, err)

	_, err = encoder.InverseTransform([]int{9})
	assert.Error(t, err)
}

func TestLabelEncoder_NotFitted(t *testing.T) {
	encoder := NewLabelEncoder()

	_, err := encoder.Transform([]string{"a"})
	assert.Error(t, err)

	_, err = encoder.InverseTransform([]int{0})
	assert.Error(t, err)
}

func TestLabelEncoder_SaveLoad(t *testing.T) {
	encoder := NewLabelEncoder()
	_, err := encoder.FitTransform([]string{"a", "b", "a"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "encoder.gob")
	require.NoError(t, encoder.Save(path))

	loaded := NewLabelEncoder()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, encoder.ClassToInt, loaded.ClassToInt)
	assert.Equal(t, encoder.IntToClass, loaded.IntToClass)
	assert.True(t, loaded.IsFitted)
}
