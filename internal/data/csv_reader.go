package data

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"knntune/internal/preprocessing"
)

// CSVReader loads a labeled tabular dataset: every column but the last is a
// numeric feature, the last column is the class label.
type CSVReader struct {
	filename string
}

func NewCSVReader(filename string) *CSVReader {
	return &CSVReader{filename: filename}
}

func (cr *CSVReader) LoadData() ([][]decimal.Decimal, []int, []string, *preprocessing.LabelEncoder, error) {
	file, err := os.Open(cr.filename)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if len(records) < 2 {
		return nil, nil, nil, nil, fmt.Errorf("insufficient data in file")
	}

	headers := records[0][:len(records[0])-1]
	rows := records[1:]

	X := make([][]decimal.Decimal, len(rows))
	labels := make([]string, len(rows))

	for i, record := range rows {
		if len(record) != len(records[0]) {
			return nil, nil, nil, nil, fmt.Errorf("row %d has %d columns, expected %d", i+1, len(record), len(records[0]))
		}

		X[i] = make([]decimal.Decimal, len(record)-1)
		for j := 0; j < len(record)-1; j++ {
			val, err := decimal.NewFromString(record[j])
			if err != nil {
				return nil, nil, nil, nil, fmt.Errorf("row %d column %q: %w", i+1, records[0][j], err)
			}
			X[i][j] = val
		}
		labels[i] = record[len(record)-1]
	}

	encoder := preprocessing.NewLabelEncoder()
	y, err := encoder.FitTransform(labels)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	return X, y, headers, encoder, nil
}
