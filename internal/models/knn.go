package models

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

type KNN struct {
	BaseModel
	K        int
	Distance string
	XTrain   [][]decimal.Decimal
	YTrain   []int
}

func NewKNN(k int, distance string) *KNN {
	if distance != "euclidean" && distance != "manhattan" {
		distance = "euclidean"
	}

	return &KNN{
		K:        k,
		Distance: distance,
		BaseModel: BaseModel{
			Name: "KNN",
			Params: map[string]any{
				"k":        k,
				"distance": distance,
			},
		},
	}
}

// Fit stores an owned copy of the training data. k must be odd so a binary
// vote cannot tie.
func (knn *KNN) Fit(X [][]decimal.Decimal, y []int) error {
	if knn.K < 1 {
		return &InputValidationError{Field: "k", Reason: "must be at least 1"}
	}
	if knn.K%2 == 0 {
		return &InputValidationError{Field: "k", Reason: "must be odd to avoid tie votes"}
	}
	if knn.K > len(X) {
		return &InputValidationError{Field: "k", Reason: "exceeds training set size"}
	}
	if len(X) != len(y) {
		return &InputValidationError{Field: "training data", Reason: "features and labels have different lengths"}
	}

	knn.XTrain = make([][]decimal.Decimal, len(X))
	for i := range X {
		knn.XTrain[i] = make([]decimal.Decimal, len(X[i]))
		copy(knn.XTrain[i], X[i])
	}

	knn.YTrain = make([]int, len(y))
	copy(knn.YTrain, y)

	knn.Classes = ExtractClasses(y)
	return nil
}

func (knn *KNN) Predict(X [][]decimal.Decimal) []int {
	predictions := make([]int, len(X))

	for i, sample := range X {
		neighbors := knn.findNeighbors(sample)
		predictions[i] = knn.majorityVote(neighbors)
	}

	return predictions
}

func (knn *KNN) PredictProba(X [][]decimal.Decimal) [][]decimal.Decimal {
	proba := make([][]decimal.Decimal, len(X))

	for i, sample := range X {
		neighbors := knn.findNeighbors(sample)
		proba[i] = knn.calculateProbabilities(neighbors)
	}

	return proba
}

// findNeighbors returns the indices of the k nearest training samples. The
// sort is stable, so equal distances resolve to the first-seen training
// sample; queries at distance zero are ordinary neighbors.
func (knn *KNN) findNeighbors(sample []decimal.Decimal) []int {
	type neighbor struct {
		index    int
		distance float64
	}

	neighbors := make([]neighbor, len(knn.XTrain))

	for i, trainSample := range knn.XTrain {
		dist := knn.calculateDistance(sample, trainSample)
		neighbors[i] = neighbor{index: i, distance: dist}
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].distance < neighbors[j].distance
	})

	kNeighbors := make([]int, knn.K)
	for i := 0; i < knn.K; i++ {
		kNeighbors[i] = neighbors[i].index
	}

	return kNeighbors
}

func (knn *KNN) calculateDistance(a, b []decimal.Decimal) float64 {
	switch knn.Distance {
	case "manhattan":
		sum := 0.0
		for i := range a {
			diff, _ := a[i].Sub(b[i]).Abs().Float64()
			sum += diff
		}
		return sum
	default:
		sum := 0.0
		for i := range a {
			diff, _ := a[i].Sub(b[i]).Float64()
			sum += diff * diff
		}
		return math.Sqrt(sum)
	}
}

func (knn *KNN) majorityVote(neighbors []int) int {
	votes := make(map[int]int)

	for _, neighborIdx := range neighbors {
		class := knn.YTrain[neighborIdx]
		votes[class]++
	}

	maxVotes := 0
	bestClass := knn.Classes[0]

	for _, class := range knn.Classes {
		if votes[class] > maxVotes {
			maxVotes = votes[class]
			bestClass = class
		}
	}

	return bestClass
}

func (knn *KNN) calculateProbabilities(neighbors []int) []decimal.Decimal {
	votes := make(map[int]int)

	for _, neighborIdx := range neighbors {
		class := knn.YTrain[neighborIdx]
		votes[class]++
	}

	proba := make([]decimal.Decimal, len(knn.Classes))
	totalVotes := decimal.NewFromInt(int64(len(neighbors)))

	for i, class := range knn.Classes {
		count := votes[class]
		proba[i] = decimal.NewFromInt(int64(count)).Div(totalVotes)
	}

	return proba
}

func (knn *KNN) Reset() {
	knn.XTrain = nil
	knn.YTrain = nil
	knn.Classes = nil
}
