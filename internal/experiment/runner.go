package experiment

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"knntune/internal/data"
	"knntune/internal/evaluation"
	"knntune/internal/models"
	"knntune/internal/preprocessing"
)

type ExperimentConfig struct {
	Experiment struct {
		Preprocessing   string  `yaml:"preprocessing"`
		TrainFraction   float64 `yaml:"train_fraction"`
		Seed            int64   `yaml:"seed"`
		PositiveClass   string  `yaml:"positive_class"`
		CrossValidation struct {
			Folds   int `yaml:"folds"`
			Repeats int `yaml:"repeats"`
			Workers int `yaml:"workers"`
		} `yaml:"cross_validation"`
		KNN struct {
			KGrid    []int  `yaml:"k_grid"`
			Distance string `yaml:"distance"`
		} `yaml:"knn"`
		Threshold struct {
			Step float64 `yaml:"step"`
		} `yaml:"threshold"`
	} `yaml:"experiment"`
}

func DefaultConfig() *ExperimentConfig {
	config := &ExperimentConfig{}
	config.Experiment.Preprocessing = "standardized"
	config.Experiment.TrainFraction = 0.7
	config.Experiment.Seed = 42
	config.Experiment.CrossValidation.Folds = 10
	config.Experiment.CrossValidation.Repeats = 10
	config.Experiment.CrossValidation.Workers = 4
	config.Experiment.KNN.KGrid = []int{3, 5, 7, 9, 11}
	config.Experiment.KNN.Distance = "euclidean"
	config.Experiment.Threshold.Step = 0.01
	return config
}

type ExperimentRunner struct {
	Config *ExperimentConfig
}

func NewRunner(configFile string) (*ExperimentRunner, error) {
	config := DefaultConfig()

	raw, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &ExperimentRunner{Config: config}, nil
}

func NewDefaultRunner() *ExperimentRunner {
	return &ExperimentRunner{Config: DefaultConfig()}
}

type Report struct {
	Dataset       string
	Stats         *data.DatasetStats
	Search        *evaluation.SearchResult
	Model         *models.KNN
	Scaler        *preprocessing.Scaler
	Encoder       *preprocessing.LabelEncoder
	PositiveLabel string
	Threshold     float64
	Curve         []evaluation.CurvePoint
	AUC           float64
	Metrics       *evaluation.ClassificationMetrics
	Elapsed       time.Duration
}

// Run executes the whole analysis: load, validate, summarize, scale, split,
// tune k by repeated cross-validation, refit on the training subset, pick a
// decision threshold on the held-out probabilities and evaluate at it.
func (r *ExperimentRunner) Run(dataFile string) (*Report, error) {
	start := time.Now()
	cfg := r.Config.Experiment

	X, y, headers, encoder, err := data.NewCSVReader(dataFile).LoadData()
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	validator := data.NewDataValidator()
	if err := validator.ValidateDataset(X, y); err != nil {
		return nil, err
	}
	if err := validator.ValidateLabels(y); err != nil {
		return nil, err
	}

	stats := validator.GetDatasetStats(X, y, headers)
	log.Info().Int("samples", stats.Samples).Int("features", stats.Features).
		Interface("class_distribution", stats.ClassDistribution).Msg("dataset loaded")

	XProcessed := X
	var scaler *preprocessing.Scaler
	if cfg.Preprocessing != "" && cfg.Preprocessing != "raw" {
		scaler = preprocessing.NewScaler(cfg.Preprocessing)
		XProcessed, err = scaler.FitTransform(X)
		if err != nil {
			return nil, err
		}
	}

	splitter := evaluation.NewTrainTestSplitter(cfg.TrainFraction, cfg.Seed)
	XTrain, XTest, yTrain, yTest, err := splitter.StratifiedSplit(XProcessed, y)
	if err != nil {
		return nil, err
	}
	log.Info().Int("train", len(XTrain)).Int("test", len(XTest)).Msg("stratified split")

	searcher := evaluation.NewSearcher(evaluation.SearchConfig{
		KGrid:      cfg.KNN.KGrid,
		Folds:      cfg.CrossValidation.Folds,
		Repeats:    cfg.CrossValidation.Repeats,
		RandomSeed: cfg.Seed,
		Distance:   cfg.KNN.Distance,
		MaxWorkers: cfg.CrossValidation.Workers,
	})

	result, err := searcher.Search(XTrain, yTrain)
	if err != nil {
		return nil, fmt.Errorf("cross-validation search failed: %w", err)
	}
	log.Info().Int("best_k", result.BestK).Int("observations", len(result.Scores)).Msg("search complete")

	model := models.NewKNN(result.BestK, cfg.KNN.Distance)
	if err := model.Fit(XTrain, yTrain); err != nil {
		return nil, err
	}

	positive, negative, positiveLabel, err := r.resolvePositiveClass(encoder, model.GetClasses())
	if err != nil {
		return nil, err
	}

	proba := model.PredictProba(XTest)
	positiveProbs, err := evaluation.PositiveProba(proba, model.GetClasses(), positive)
	if err != nil {
		return nil, err
	}

	selector := evaluation.NewThresholdSelector(cfg.Threshold.Step)
	threshold, curve, err := selector.Select(positiveProbs, yTest, positive)
	if err != nil {
		return nil, fmt.Errorf("threshold selection failed: %w", err)
	}
	auc := evaluation.AUC(curve)
	log.Info().Float64("threshold", threshold).Float64("auc", auc).Msg("threshold selected")

	predictions := evaluation.ApplyThreshold(positiveProbs, threshold, positive, negative)
	metrics, err := evaluation.Evaluate(yTest, predictions, positive)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	return &Report{
		Dataset:       dataFile,
		Stats:         stats,
		Search:        result,
		Model:         model,
		Scaler:        scaler,
		Encoder:       encoder,
		PositiveLabel: positiveLabel,
		Threshold:     threshold,
		Curve:         curve,
		AUC:           auc,
		Metrics:       metrics,
		Elapsed:       time.Since(start),
	}, nil
}

// resolvePositiveClass honors the configured positive label, defaulting to
// the higher encoded class.
func (r *ExperimentRunner) resolvePositiveClass(encoder *preprocessing.LabelEncoder, classes []int) (int, int, string, error) {
	if len(classes) != 2 {
		return 0, 0, "", fmt.Errorf("expected 2 classes, found %d", len(classes))
	}

	positive := classes[1]
	if name := r.Config.Experiment.PositiveClass; name != "" {
		code, ok := encoder.ClassToInt[name]
		if !ok {
			return 0, 0, "", fmt.Errorf("positive class %q not present in labels", name)
		}
		positive = code
	}

	negative := classes[0]
	if negative == positive {
		negative = classes[1]
	}

	return positive, negative, encoder.IntToClass[positive], nil
}

func (r *ExperimentRunner) ExportScoreTable(result *evaluation.SearchResult, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{"K", "Repeat", "Fold", "Accuracy", "Kappa"})
	for _, score := range result.Scores {
		writer.Write([]string{
			fmt.Sprintf("%d", score.K),
			fmt.Sprintf("%d", score.Repeat),
			fmt.Sprintf("%d", score.Fold),
			fmt.Sprintf("%.4f", score.Accuracy),
			fmt.Sprintf("%.4f", score.Kappa),
		})
	}

	writer.Write([]string{})
	writer.Write([]string{"K", "MeanAccuracy", "StdDevAccuracy", "MeanKappa", "Selected"})
	for _, entry := range result.Summary {
		selected := ""
		if entry.K == result.BestK {
			selected = "*"
		}
		writer.Write([]string{
			fmt.Sprintf("%d", entry.K),
			fmt.Sprintf("%.4f", entry.MeanAccuracy),
			fmt.Sprintf("%.4f", entry.StdDevAccuracy),
			fmt.Sprintf("%.4f", entry.MeanKappa),
			selected,
		})
	}

	return writer.Error()
}

func (r *ExperimentRunner) ExportCurve(curve []evaluation.CurvePoint, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{"Threshold", "Sensitivity", "Specificity"})
	for _, point := range curve {
		writer.Write([]string{
			fmt.Sprintf("%.4f", point.Threshold),
			fmt.Sprintf("%.4f", point.Sensitivity),
			fmt.Sprintf("%.4f", point.Specificity),
		})
	}

	return writer.Error()
}
