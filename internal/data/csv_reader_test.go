package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCSVReader_LoadData(t *testing.T) {
	path := writeCSV(t, "width,height,label\n1.5,2,yes\n3,4.25,no\n5,6,yes\n")

	X, y, headers, encoder, err := NewCSVReader(path).LoadData()
	require.NoError(t, err)

	assert.Equal(t, []string{"width", "height"}, headers)
	require.Len(t, X, 3)
	assert.True(t, X[0][0].Equal(decimal.NewFromFloat(1.5)))
	assert.True(t, X[1][1].Equal(decimal.NewFromFloat(4.25)))

	// labels encode in first-seen order: yes=0, no=1
	assert.Equal(t, []int{0, 1, 0}, y)
	assert.Equal(t, "yes", encoder.IntToClass[0])
	assert.Equal(t, "no", encoder.IntToClass[1])
}

func TestCSVReader_BadNumeric(t *testing.T) {
	path := writeCSV(t, "x,label\n1,yes\noops,no\n")

	_, _, _, _, err := NewCSVReader(path).LoadData()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestCSVReader_HeaderOnly(t *testing.T) {
	path := writeCSV(t, "x,label\n")

	_, _, _, _, err := NewCSVReader(path).LoadData()
	assert.Error(t, err)
}

func TestCSVReader_MissingFile(t *testing.T) {
	_, _, _, _, err := NewCSVReader("nope.csv").LoadData()
	assert.Error(t, err)
}

func TestStreamingReader_Batches(t *testing.T) {
	path := writeCSV(t, "x,y,label\n1,2,a\n3,4,b\n5,6,a\n7,8,b\n9,10,a\n")

	var sizes []int
	var labels []string
	err := ProcessLargeFile(path, 2, func(batch *DataBatch) error {
		sizes = append(sizes, batch.Size)
		labels = append(labels, batch.Labels...)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, []string{"a", "b", "a", "b", "a"}, labels)
}

func TestStreamingReader_SkipsIncompleteRows(t *testing.T) {
	path := writeCSV(t, "x,label\n1,a\n,b\n3,a\n")

	var total int
	err := ProcessLargeFile(path, 10, func(batch *DataBatch) error {
		total += batch.Size
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
