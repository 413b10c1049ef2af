package preprocessing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matrix(rows ...[]float64) [][]decimal.Decimal {
	result := make([][]decimal.Decimal, len(rows))
	for i, row := range rows {
		result[i] = make([]decimal.Decimal, len(row))
		for j, v := range row {
			result[i][j] = decimal.NewFromFloat(v)
		}
	}
	return result
}

func TestScaler_MinMax(t *testing.T) {
	X := matrix([]float64{0, 10}, []float64{5, 20}, []float64{10, 30})

	scaler := NewScaler("minmax")
	scaled, err := scaler.FitTransform(X)
	require.NoError(t, err)

	assert.True(t, scaled[0][0].IsZero())
	assert.True(t, scaled[1][0].Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, scaled[2][0].Equal(decimal.NewFromInt(1)))

	assert.True(t, scaled[0][1].IsZero())
	assert.True(t, scaled[2][1].Equal(decimal.NewFromInt(1)))
}

func TestScaler_Standard(t *testing.T) {
	X := matrix([]float64{2}, []float64{4}, []float64{6})

	scaler := NewScaler("standard")
	scaled, err := scaler.FitTransform(X)
	require.NoError(t, err)

	// mean 4, population stddev sqrt(8/3)
	assert.True(t, scaled[1][0].IsZero())

	low, _ := scaled[0][0].Float64()
	high, _ := scaled[2][0].Float64()
	assert.InDelta(t, -1.2247448, low, 1e-6)
	assert.InDelta(t, 1.2247448, high, 1e-6)
}

func TestScaler_RawPassthrough(t *testing.T) {
	X := matrix([]float64{1, 2}, []float64{3, 4})

	scaler := NewScaler("raw")
	scaled, err := scaler.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, X, scaled)
}

func TestScaler_ConstantFeature(t *testing.T) {
	X := matrix([]float64{5}, []float64{5}, []float64{5})

	for _, scaleType := range []string{"minmax", "standard"} {
		scaler := NewScaler(scaleType)
		scaled, err := scaler.FitTransform(X)
		require.NoError(t, err, scaleType)
		for _, row := range scaled {
			assert.True(t, row[0].IsZero(), scaleType)
		}
	}
}

func TestScaler_Errors(t *testing.T) {
	scaler := NewScaler("minmax")
	_, err := scaler.Transform(matrix([]float64{1}))
	assert.Error(t, err)

	assert.Error(t, NewScaler("bogus").Fit(matrix([]float64{1})))
	assert.Error(t, NewScaler("minmax").Fit(nil))
}
