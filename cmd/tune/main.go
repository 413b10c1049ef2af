package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"knntune/internal/experiment"
	"knntune/internal/persistence"
)

func main() {
	dataFile := flag.String("data", "", "Path to labeled CSV dataset")
	configFile := flag.String("config", "", "Path to YAML experiment config")
	outputDir := flag.String("output", "models", "Output directory for results")
	kGrid := flag.String("k-grid", "", "Comma-separated odd k values (overrides config)")
	folds := flag.Int("folds", 0, "Cross-validation folds (overrides config)")
	repeats := flag.Int("repeats", 0, "Cross-validation repeats (overrides config)")
	seed := flag.Int64("seed", 0, "Random seed (overrides config)")
	trainFraction := flag.Float64("train-fraction", 0, "Training fraction (overrides config)")
	preprocess := flag.String("preprocess", "", "Preprocessing: raw|normalized|standardized (overrides config)")
	verbose := flag.Bool("v", false, "Verbose logging")

	flag.Parse()
	passed := flagsPassed(flag.CommandLine)

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *dataFile == "" {
		fmt.Println("Usage:")
		fmt.Println("  tune -data data/train.csv")
		fmt.Println("  tune -data data/train.csv -config config/config.yaml -v")
		fmt.Println("\nOptions:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var runner *experiment.ExperimentRunner
	if *configFile != "" {
		var err error
		runner, err = experiment.NewRunner(*configFile)
		if err != nil {
			log.Fatal().Err(err).Str("config", *configFile).Msg("failed to load config")
		}
	} else {
		runner = experiment.NewDefaultRunner()
	}

	cfg := &runner.Config.Experiment
	if *kGrid != "" {
		grid, err := parseGrid(*kGrid)
		if err != nil {
			log.Fatal().Err(err).Msg("bad -k-grid")
		}
		cfg.KNN.KGrid = grid
	}
	if *folds > 0 {
		cfg.CrossValidation.Folds = *folds
	}
	if *repeats > 0 {
		cfg.CrossValidation.Repeats = *repeats
	}
	if passed["seed"] {
		cfg.Seed = *seed
	}
	if *trainFraction > 0 {
		cfg.TrainFraction = *trainFraction
	}
	if *preprocess != "" {
		cfg.Preprocessing = *preprocess
	}

	report, err := runner.Run(*dataFile)
	if err != nil {
		log.Fatal().Err(err).Msg("analysis failed")
	}

	printReport(report)

	timestamp := time.Now().Format("20060102_150405")
	runDir := filepath.Join(*outputDir, fmt.Sprintf("run_%s", timestamp))
	if err := os.MkdirAll(runDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("failed to create output directory")
	}

	if err := runner.ExportScoreTable(report.Search, filepath.Join(runDir, "score_table.csv")); err != nil {
		log.Error().Err(err).Msg("failed to export score table")
	}
	if err := runner.ExportCurve(report.Curve, filepath.Join(runDir, "roc_curve.csv")); err != nil {
		log.Error().Err(err).Msg("failed to export curve")
	}

	bundle := persistence.NewModelBundle(report.Model)
	bundle.Scaler = report.Scaler
	bundle.LabelEncoder = report.Encoder
	bundle.Metadata.Dataset = *dataFile
	bundle.Metadata.BestK = report.Search.BestK
	bundle.Metadata.Threshold = report.Threshold
	bundle.Metadata.AUC = report.AUC
	bundle.Metadata.Accuracy = report.Metrics.Accuracy
	bundle.Metadata.Kappa = report.Metrics.Kappa
	bundle.Metadata.Precision = report.Metrics.Precision
	bundle.Metadata.Recall = report.Metrics.Recall
	bundle.Metadata.F1Score = report.Metrics.F1Score
	bundle.Metadata.PositiveLabel = report.PositiveLabel
	bundle.Metadata.TrainingTime = report.Elapsed

	modelPath := filepath.Join(runDir, "knn.model")
	if err := bundle.Save(modelPath); err != nil {
		log.Error().Err(err).Msg("failed to save model bundle")
	} else if err := bundle.SaveMetadata(filepath.Join(runDir, "summary.txt")); err != nil {
		log.Error().Err(err).Msg("failed to save summary")
	}

	fmt.Printf("\nResults written to %s\n", runDir)
}

// flagsPassed reports which flags were given explicitly, so a literal
// "-seed 0" is distinguishable from the flag being absent.
func flagsPassed(fs *flag.FlagSet) map[string]bool {
	passed := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		passed[f.Name] = true
	})
	return passed
}

func parseGrid(raw string) ([]int, error) {
	var grid []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", part)
		}
		grid = append(grid, k)
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("empty grid")
	}
	return grid, nil
}

func printReport(report *experiment.Report) {
	fmt.Printf("Dataset: %s (%d samples, %d features)\n",
		report.Dataset, report.Stats.Samples, report.Stats.Features)

	fmt.Println("\nFeature summary:")
	for _, fs := range report.Stats.FeatureStats {
		fmt.Printf("  %-20s min=%.4f max=%.4f mean=%.4f stddev=%.4f\n",
			fs.Name, fs.Min, fs.Max, fs.Mean, fs.StdDev)
	}

	fmt.Println("\nCross-validation results:")
	for _, entry := range report.Search.Summary {
		marker := " "
		if entry.K == report.Search.BestK {
			marker = "*"
		}
		fmt.Printf("  k=%-3d accuracy=%.4f ±%.4f kappa=%.4f %s\n",
			entry.K, entry.MeanAccuracy, entry.StdDevAccuracy, entry.MeanKappa, marker)
	}

	fmt.Printf("\nBest k: %d\n", report.Search.BestK)
	fmt.Printf("Decision threshold: %.4f (positive class %q)\n", report.Threshold, report.PositiveLabel)
	fmt.Printf("AUC: %.4f\n", report.AUC)
	fmt.Printf("\nTest set performance:\n%s", report.Metrics.FormatMetrics())
	fmt.Printf("Elapsed: %v\n", report.Elapsed)
}
