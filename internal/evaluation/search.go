package evaluation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"knntune/internal/models"
)

// InsufficientDataError reports a fold whose held-in portion has no training
// examples for a class, so the classifier cannot vote for it.
type InsufficientDataError struct {
	Repeat int
	Fold   int
	Class  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("repeat %d fold %d has no training examples for class %d", e.Repeat, e.Fold, e.Class)
}

type SearchConfig struct {
	KGrid      []int
	Folds      int
	Repeats    int
	RandomSeed int64
	Distance   string
	MaxWorkers int
	OnProgress func(completed, total int)
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		KGrid:      []int{3, 5, 7, 9, 11},
		Folds:      10,
		Repeats:    10,
		RandomSeed: 42,
		Distance:   "euclidean",
		MaxWorkers: 4,
	}
}

type FoldScore struct {
	K        int     `json:"k"`
	Repeat   int     `json:"repeat"`
	Fold     int     `json:"fold"`
	Accuracy float64 `json:"accuracy"`
	Kappa    float64 `json:"kappa"`
}

type KSummary struct {
	K              int     `json:"k"`
	MeanAccuracy   float64 `json:"mean_accuracy"`
	StdDevAccuracy float64 `json:"stddev_accuracy"`
	MeanKappa      float64 `json:"mean_kappa"`
}

type SearchResult struct {
	BestK   int         `json:"best_k"`
	Summary []KSummary  `json:"summary"`
	Scores  []FoldScore `json:"scores"`
}

type Searcher struct {
	config SearchConfig
}

func NewSearcher(config SearchConfig) *Searcher {
	if config.Folds <= 0 {
		config.Folds = 10
	}
	if config.Repeats <= 0 {
		config.Repeats = 10
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 4
	}
	if config.Distance == "" {
		config.Distance = "euclidean"
	}
	return &Searcher{config: config}
}

func (s *Searcher) Search(X [][]decimal.Decimal, y []int) (*SearchResult, error) {
	return s.SearchContext(context.Background(), X, y)
}

// SearchContext runs repeated stratified k-fold cross-validation over the k
// grid and returns the k with the highest mean accuracy, ties going to the
// smaller k. Fold assignments for repeat r derive from RandomSeed + r, so two
// runs with the same seed produce identical score tables. Repeats run on a
// worker pool; any fold failure aborts the whole search. Cancelling the
// context stops the search between repeats.
func (s *Searcher) SearchContext(ctx context.Context, X [][]decimal.Decimal, y []int) (*SearchResult, error) {
	if len(X) != len(y) {
		return nil, &models.InputValidationError{Field: "dataset", Reason: "features and labels have different lengths"}
	}
	if len(X) == 0 {
		return nil, &models.InputValidationError{Field: "dataset", Reason: "empty"}
	}
	if len(s.config.KGrid) == 0 {
		return nil, &models.InputValidationError{Field: "k grid", Reason: "empty"}
	}
	for _, k := range s.config.KGrid {
		if k < 1 {
			return nil, &models.InputValidationError{Field: "k grid", Reason: fmt.Sprintf("k=%d must be at least 1", k)}
		}
		if k%2 == 0 {
			return nil, &models.InputValidationError{Field: "k grid", Reason: fmt.Sprintf("k=%d must be odd to avoid tie votes", k)}
		}
	}
	if s.config.Folds < 2 || s.config.Folds > len(X) {
		return nil, &models.InputValidationError{Field: "folds", Reason: fmt.Sprintf("must be between 2 and %d", len(X))}
	}

	repeatScores := make([][]FoldScore, s.config.Repeats)
	repeatErrors := make([]error, s.config.Repeats)

	workers := s.config.MaxWorkers
	if workers > s.config.Repeats {
		workers = s.config.Repeats
	}

	jobs := make(chan int, s.config.Repeats)
	var wg sync.WaitGroup
	var completed int64

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for repeat := range jobs {
				if ctx.Err() != nil {
					continue
				}
				scores, err := s.evaluateRepeat(X, y, repeat)
				repeatScores[repeat-1] = scores
				repeatErrors[repeat-1] = err
				if err == nil && s.config.OnProgress != nil {
					done := atomic.AddInt64(&completed, 1)
					s.config.OnProgress(int(done), s.config.Repeats)
				}
			}
		}()
	}

	for repeat := 1; repeat <= s.config.Repeats; repeat++ {
		jobs <- repeat
	}
	close(jobs)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for repeat, err := range repeatErrors {
		if err != nil {
			return nil, fmt.Errorf("repeat %d failed: %w", repeat+1, err)
		}
	}

	var scores []FoldScore
	for _, rs := range repeatScores {
		scores = append(scores, rs...)
	}

	summary := summarize(scores, s.config.KGrid)
	bestK := selectBestK(summary)

	return &SearchResult{BestK: bestK, Summary: summary, Scores: scores}, nil
}

func (s *Searcher) evaluateRepeat(X [][]decimal.Decimal, y []int, repeat int) ([]FoldScore, error) {
	folds := stratifiedFolds(y, s.config.Folds, s.config.RandomSeed+int64(repeat))
	classes := models.ExtractClasses(y)
	positive := classes[len(classes)-1]

	var scores []FoldScore

	for foldIdx, testIndices := range folds {
		testSet := make(map[int]bool)
		for _, idx := range testIndices {
			testSet[idx] = true
		}

		trainIndices := make([]int, 0, len(X)-len(testIndices))
		for i := 0; i < len(X); i++ {
			if !testSet[i] {
				trainIndices = append(trainIndices, i)
			}
		}

		trainClassCount := make(map[int]int)
		for _, idx := range trainIndices {
			trainClassCount[y[idx]]++
		}
		for _, class := range classes {
			if trainClassCount[class] == 0 {
				return nil, &InsufficientDataError{Repeat: repeat, Fold: foldIdx, Class: class}
			}
		}

		XTrain := make([][]decimal.Decimal, len(trainIndices))
		yTrain := make([]int, len(trainIndices))
		for i, idx := range trainIndices {
			XTrain[i] = X[idx]
			yTrain[i] = y[idx]
		}

		XTest := make([][]decimal.Decimal, len(testIndices))
		yTest := make([]int, len(testIndices))
		for i, idx := range testIndices {
			XTest[i] = X[idx]
			yTest[i] = y[idx]
		}

		for _, k := range s.config.KGrid {
			model := models.NewKNN(k, s.config.Distance)
			if err := model.Fit(XTrain, yTrain); err != nil {
				return nil, err
			}

			predictions := model.Predict(XTest)
			cm := BuildConfusionMatrix(yTest, predictions, positive)

			accuracy, err := Accuracy(cm)
			if err != nil {
				return nil, err
			}
			kappa, err := Kappa(cm)
			if err != nil {
				return nil, err
			}

			scores = append(scores, FoldScore{
				K:        k,
				Repeat:   repeat,
				Fold:     foldIdx,
				Accuracy: accuracy,
				Kappa:    kappa,
			})
		}
	}

	return scores, nil
}

// stratifiedFolds deals each class's shuffled indices round-robin across the
// folds, so per-class counts differ by at most one between any two folds.
func stratifiedFolds(y []int, nFolds int, seed int64) [][]int {
	classIndices := make(map[int][]int)
	for i, label := range y {
		classIndices[label] = append(classIndices[label], i)
	}

	rng := rand.New(rand.NewSource(seed))
	folds := make([][]int, nFolds)

	for _, class := range models.ExtractClasses(y) {
		indices := classIndices[class]
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		for i, idx := range indices {
			fold := i % nFolds
			folds[fold] = append(folds[fold], idx)
		}
	}

	return folds
}

func summarize(scores []FoldScore, kGrid []int) []KSummary {
	accuracies := make(map[int][]float64)
	kappas := make(map[int][]float64)
	for _, score := range scores {
		accuracies[score.K] = append(accuracies[score.K], score.Accuracy)
		kappas[score.K] = append(kappas[score.K], score.Kappa)
	}

	ks := make([]int, len(kGrid))
	copy(ks, kGrid)
	sort.Ints(ks)

	summary := make([]KSummary, 0, len(ks))
	for _, k := range ks {
		summary = append(summary, KSummary{
			K:              k,
			MeanAccuracy:   stat.Mean(accuracies[k], nil),
			StdDevAccuracy: stat.StdDev(accuracies[k], nil),
			MeanKappa:      stat.Mean(kappas[k], nil),
		})
	}

	return summary
}

// selectBestK assumes summaries sorted by k ascending; a strict comparison
// keeps the smaller k on ties.
func selectBestK(summary []KSummary) int {
	bestK := summary[0].K
	bestAccuracy := summary[0].MeanAccuracy

	for _, entry := range summary[1:] {
		if entry.MeanAccuracy > bestAccuracy {
			bestAccuracy = entry.MeanAccuracy
			bestK = entry.K
		}
	}

	return bestK
}
