package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

type DataBatch struct {
	X      [][]decimal.Decimal
	Labels []string
	Size   int
}

// StreamingReader reads feature rows in batches so a large scoring file never
// has to fit in memory at once.
type StreamingReader struct {
	file      *os.File
	reader    *csv.Reader
	headers   []string
	labelCol  int
	batchSize int
}

func NewStreamingReader(filename string, labelCol int, batchSize int) (*StreamingReader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	reader := csv.NewReader(file)

	headers, err := reader.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read headers: %w", err)
	}

	if labelCol < 0 || labelCol >= len(headers) {
		labelCol = len(headers) - 1
	}

	if batchSize <= 0 {
		batchSize = 1000
	}

	return &StreamingReader{
		file:      file,
		reader:    reader,
		headers:   headers,
		labelCol:  labelCol,
		batchSize: batchSize,
	}, nil
}

func (sr *StreamingReader) ReadBatch() (*DataBatch, error) {
	batch := &DataBatch{
		X:      make([][]decimal.Decimal, 0, sr.batchSize),
		Labels: make([]string, 0, sr.batchSize),
	}

	for len(batch.X) < sr.batchSize {
		record, err := sr.reader.Read()
		if err == io.EOF {
			if len(batch.X) == 0 {
				return nil, io.EOF
			}
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading record: %w", err)
		}

		hasEmpty := false
		for _, val := range record {
			if strings.TrimSpace(val) == "" {
				hasEmpty = true
				break
			}
		}
		if hasEmpty {
			continue
		}

		features := make([]decimal.Decimal, 0, len(record)-1)
		label := ""

		for j, val := range record {
			if j == sr.labelCol {
				label = val
			} else {
				decVal, err := decimal.NewFromString(val)
				if err != nil {
					return nil, fmt.Errorf("column %q: %w", sr.headers[j], err)
				}
				features = append(features, decVal)
			}
		}

		batch.X = append(batch.X, features)
		batch.Labels = append(batch.Labels, label)
	}

	batch.Size = len(batch.X)
	return batch, nil
}

func (sr *StreamingReader) GetHeaders() []string {
	return sr.headers
}

func (sr *StreamingReader) Close() error {
	return sr.file.Close()
}

func ProcessLargeFile(filename string, batchSize int, processor func(*DataBatch) error) error {
	reader, err := NewStreamingReader(filename, -1, batchSize)
	if err != nil {
		return err
	}
	defer reader.Close()

	batchNum := 0
	for {
		batch, err := reader.ReadBatch()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading batch %d: %w", batchNum, err)
		}

		if err := processor(batch); err != nil {
			return fmt.Errorf("error processing batch %d: %w", batchNum, err)
		}

		batchNum++
	}

	return nil
}
