package commander

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"knntune/internal/data"
	"knntune/internal/evaluation"
	"knntune/internal/jobs"
	"knntune/internal/models"
	"knntune/internal/persistence"
	"knntune/internal/preprocessing"
)

type Commander struct {
	loadedData  *DataSet
	searchCfg   evaluation.SearchConfig
	lastResult  *evaluation.SearchResult
	modelBundle *persistence.ModelBundle
	jobManager  *jobs.Manager

	green  func(a ...any) string
	red    func(a ...any) string
	yellow func(a ...any) string
	cyan   func(a ...any) string
	blue   func(a ...any) string
}

type DataSet struct {
	X          [][]decimal.Decimal
	y          []int
	Features   []string
	Encoder    *preprocessing.LabelEncoder
	SourceFile string
}

func NewCommander() *Commander {
	return &Commander{
		searchCfg:  evaluation.DefaultSearchConfig(),
		jobManager: jobs.NewManager(),
		green:      color.New(color.FgGreen).SprintFunc(),
		red:        color.New(color.FgRed).SprintFunc(),
		yellow:     color.New(color.FgYellow).SprintFunc(),
		cyan:       color.New(color.FgCyan).SprintFunc(),
		blue:       color.New(color.FgBlue).SprintFunc(),
	}
}

func (c *Commander) Start() {
	c.printWelcome()
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(c.yellow("\nknn> "))
		if !scanner.Scan() {
			if scanner.Err() != nil {
				fmt.Printf("\n%s Scanner error: %v\n", c.red("✗"), scanner.Err())
			}
			break
		}

		input := strings.TrimSpace(scanner.Text())

		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		command := strings.ToLower(parts[0])
		args := parts[1:]

		if command == "exit" || command == "quit" {
			fmt.Println(c.cyan("Bye."))
			return
		}

		c.ExecuteCommand(command, args)
	}
}

func (c *Commander) ExecuteCommand(command string, args []string) {
	switch command {
	case "help", "h":
		c.showHelp()
	case "load":
		if len(args) > 0 {
			c.loadData(args[0])
		} else {
			fmt.Println(c.red("Usage: load <filename>"))
		}
	case "info":
		c.showDataInfo()
	case "grid":
		c.setGrid(args)
	case "folds":
		c.setFolds(args)
	case "repeats":
		c.setRepeats(args)
	case "seed":
		c.setSeed(args)
	case "tune":
		c.tune()
	case "tune-bg":
		c.tuneBackground()
	case "job-status":
		if len(args) > 0 {
			c.showJobStatus(args[0])
		} else {
			c.listAllJobs()
		}
	case "job-logs":
		if len(args) > 0 {
			c.showJobLogs(args[0])
		} else {
			fmt.Println(c.red("Usage: job-logs <job-id>"))
		}
	case "job-cancel":
		if len(args) > 0 {
			c.cancelJob(args[0])
		} else {
			fmt.Println(c.red("Usage: job-cancel <job-id>"))
		}
	case "scores":
		c.showScores()
	case "loadmodel":
		if len(args) > 0 {
			c.loadModel(args[0])
		} else {
			fmt.Println(c.red("Usage: loadmodel <filename>"))
		}
	case "current":
		c.showCurrentModel()
	case "batch":
		if len(args) > 0 {
			c.batchPredict(args[0])
		} else {
			fmt.Println(c.red("Usage: batch <filename>"))
		}
	default:
		fmt.Printf("%s Unknown command: %s (try 'help')\n", c.red("✗"), command)
	}
}

func (c *Commander) printWelcome() {
	fmt.Println(c.cyan("knntune interactive shell"))
	fmt.Println("Type 'help' for available commands.")
}

func (c *Commander) showHelp() {
	fmt.Println(c.cyan("Commands:"))
	fmt.Println("  load <file>        Load a labeled CSV dataset")
	fmt.Println("  info               Show descriptive statistics")
	fmt.Println("  grid <k,k,...>     Set the k grid (odd values)")
	fmt.Println("  folds <n>          Set cross-validation folds")
	fmt.Println("  repeats <n>        Set cross-validation repeats")
	fmt.Println("  seed <n>           Set the random seed")
	fmt.Println("  tune               Run the cross-validation search")
	fmt.Println("  tune-bg            Run the search as a background job")
	fmt.Println("  job-status [id]    Show job status (all jobs if no id)")
	fmt.Println("  job-logs <id>      Show a job's log lines")
	fmt.Println("  job-cancel <id>    Cancel a running background job")
	fmt.Println("  scores             Show the last score table")
	fmt.Println("  loadmodel <file>   Load a saved model bundle")
	fmt.Println("  current            Show the loaded model bundle")
	fmt.Println("  batch <file>       Score a CSV with the loaded bundle")
	fmt.Println("  exit               Leave the shell")
}

func (c *Commander) loadData(filename string) {
	X, y, headers, encoder, err := data.NewCSVReader(filename).LoadData()
	if err != nil {
		fmt.Printf("%s Failed to load %s: %v\n", c.red("✗"), filename, err)
		return
	}

	validator := data.NewDataValidator()
	if err := validator.ValidateDataset(X, y); err != nil {
		fmt.Printf("%s Invalid dataset: %v\n", c.red("✗"), err)
		return
	}
	if err := validator.ValidateLabels(y); err != nil {
		fmt.Printf("%s Invalid labels: %v\n", c.red("✗"), err)
		return
	}

	c.loadedData = &DataSet{
		X:          X,
		y:          y,
		Features:   headers,
		Encoder:    encoder,
		SourceFile: filename,
	}

	fmt.Printf("%s Loaded %d samples, %d features from %s\n",
		c.green("✓"), len(X), len(headers), filename)
}

func (c *Commander) showDataInfo() {
	if c.loadedData == nil {
		fmt.Println(c.red("No data loaded. Use: load <filename>"))
		return
	}

	validator := data.NewDataValidator()
	stats := validator.GetDatasetStats(c.loadedData.X, c.loadedData.y, c.loadedData.Features)

	fmt.Printf("%s %s\n", c.cyan("Dataset:"), c.loadedData.SourceFile)
	fmt.Printf("Samples: %d  Features: %d  Classes: %d\n", stats.Samples, stats.Features, stats.Classes)
	for class, count := range stats.ClassDistribution {
		label, _ := c.loadedData.Encoder.IntToClass[class]
		fmt.Printf("  class %q (%d): %d samples\n", label, class, count)
	}
	fmt.Println(c.cyan("Feature summary:"))
	for _, fs := range stats.FeatureStats {
		fmt.Printf("  %-20s min=%.4f max=%.4f mean=%.4f stddev=%.4f\n",
			fs.Name, fs.Min, fs.Max, fs.Mean, fs.StdDev)
	}
}

func (c *Commander) setGrid(args []string) {
	if len(args) == 0 {
		fmt.Printf("Current grid: %v\n", c.searchCfg.KGrid)
		return
	}

	var grid []int
	for _, part := range strings.Split(strings.Join(args, ","), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := strconv.Atoi(part)
		if err != nil {
			fmt.Printf("%s Not a number: %s\n", c.red("✗"), part)
			return
		}
		if k < 1 || k%2 == 0 {
			fmt.Printf("%s k=%d must be odd and positive\n", c.red("✗"), k)
			return
		}
		grid = append(grid, k)
	}

	if len(grid) == 0 {
		fmt.Println(c.red("Usage: grid <k,k,...>"))
		return
	}

	c.searchCfg.KGrid = grid
	fmt.Printf("%s Grid set to %v\n", c.green("✓"), grid)
}

func (c *Commander) setFolds(args []string) {
	if n, ok := c.parsePositive(args, "folds"); ok {
		c.searchCfg.Folds = n
		fmt.Printf("%s Folds set to %d\n", c.green("✓"), n)
	}
}

func (c *Commander) setRepeats(args []string) {
	if n, ok := c.parsePositive(args, "repeats"); ok {
		c.searchCfg.Repeats = n
		fmt.Printf("%s Repeats set to %d\n", c.green("✓"), n)
	}
}

func (c *Commander) setSeed(args []string) {
	if len(args) == 0 {
		fmt.Printf("Current seed: %d\n", c.searchCfg.RandomSeed)
		return
	}
	seed, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Printf("%s Not a number: %s\n", c.red("✗"), args[0])
		return
	}
	c.searchCfg.RandomSeed = seed
	fmt.Printf("%s Seed set to %d\n", c.green("✓"), seed)
}

func (c *Commander) parsePositive(args []string, name string) (int, bool) {
	if len(args) == 0 {
		fmt.Printf("%s Usage: %s <n>\n", c.red("✗"), name)
		return 0, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		fmt.Printf("%s %s must be a positive number\n", c.red("✗"), name)
		return 0, false
	}
	return n, true
}

func (c *Commander) tune() {
	if c.loadedData == nil {
		fmt.Println(c.red("No data loaded. Use: load <filename>"))
		return
	}

	fmt.Printf("Searching grid %v with %d×%d-fold cross-validation...\n",
		c.searchCfg.KGrid, c.searchCfg.Repeats, c.searchCfg.Folds)

	searcher := evaluation.NewSearcher(c.searchCfg)
	result, err := searcher.Search(c.loadedData.X, c.loadedData.y)
	if err != nil {
		fmt.Printf("%s Search failed: %v\n", c.red("✗"), err)
		return
	}

	c.lastResult = result
	fmt.Printf("%s Best k = %d\n", c.green("✓"), result.BestK)
	c.showScores()
}

func (c *Commander) tuneBackground() {
	if c.loadedData == nil {
		fmt.Println(c.red("No data loaded. Use: load <filename>"))
		return
	}

	cfg := c.searchCfg
	dataset := c.loadedData

	job := c.jobManager.CreateJob("tune", fmt.Sprintf("grid search on %s", dataset.SourceFile))

	ctx, cancel := context.WithCancel(context.Background())
	job.SetCancelFunc(cancel)
	cfg.OnProgress = func(completed, total int) {
		job.SetProgress(float64(completed) / float64(total))
	}

	job.SetStatus(jobs.JobRunning)
	job.AddLog(fmt.Sprintf("grid %v, %d repeats, %d folds", cfg.KGrid, cfg.Repeats, cfg.Folds))

	go func() {
		defer cancel()
		searcher := evaluation.NewSearcher(cfg)
		result, err := searcher.SearchContext(ctx, dataset.X, dataset.y)
		if errors.Is(err, context.Canceled) {
			job.AddLog("search cancelled")
			return
		}
		if err != nil {
			job.AddLog(err.Error())
			job.SetError(err)
			return
		}
		job.SetResult(result)
		job.AddLog(fmt.Sprintf("best k = %d", result.BestK))
		job.SetStatus(jobs.JobCompleted)
	}()

	fmt.Printf("%s Started job %s\n", c.green("✓"), job.ID)
}

func (c *Commander) showJobStatus(jobID string) {
	job, exists := c.jobManager.GetJob(jobID)
	if !exists {
		fmt.Printf("%s Job %s not found\n", c.red("✗"), jobID)
		return
	}

	fmt.Printf("Job %s [%s] %s\n", job.ID, job.GetStatus(), job.Description)
	fmt.Printf("  progress: %.0f%%\n", job.GetProgress()*100)
	if err := job.GetError(); err != nil {
		fmt.Printf("  error: %v\n", err)
	}
	if result, ok := job.GetResult().(*evaluation.SearchResult); ok {
		c.lastResult = result
		fmt.Printf("  best k = %d (result stored, see 'scores')\n", result.BestK)
	}
}

func (c *Commander) listAllJobs() {
	all := c.jobManager.ListJobs()
	if len(all) == 0 {
		fmt.Println("No jobs.")
		return
	}
	for _, job := range all {
		fmt.Printf("%s [%s] %s\n", job.ID, job.GetStatus(), job.Description)
	}
}

func (c *Commander) cancelJob(jobID string) {
	if err := c.jobManager.CancelJob(jobID); err != nil {
		fmt.Printf("%s %v\n", c.red("✗"), err)
		return
	}
	fmt.Printf("%s Cancelled job %s\n", c.green("✓"), jobID)
}

func (c *Commander) showJobLogs(jobID string) {
	job, exists := c.jobManager.GetJob(jobID)
	if !exists {
		fmt.Printf("%s Job %s not found\n", c.red("✗"), jobID)
		return
	}
	for _, line := range job.GetLogs() {
		fmt.Println(line)
	}
}

func (c *Commander) showScores() {
	if c.lastResult == nil {
		fmt.Println(c.red("No search results yet. Use: tune"))
		return
	}

	fmt.Println(c.cyan("k     mean acc   stddev    mean kappa"))
	for _, entry := range c.lastResult.Summary {
		marker := " "
		if entry.K == c.lastResult.BestK {
			marker = c.green("*")
		}
		fmt.Printf("%-4d  %.4f     %.4f    %.4f  %s\n",
			entry.K, entry.MeanAccuracy, entry.StdDevAccuracy, entry.MeanKappa, marker)
	}
}

func (c *Commander) loadModel(filename string) {
	bundle, err := persistence.LoadModelBundle(filename)
	if err != nil {
		fmt.Printf("%s Failed to load model: %v\n", c.red("✗"), err)
		return
	}

	c.modelBundle = bundle
	fmt.Printf("%s Loaded %s (k=%d, threshold=%.4f)\n",
		c.green("✓"), filename, bundle.Metadata.BestK, bundle.Metadata.Threshold)
}

func (c *Commander) showCurrentModel() {
	if c.modelBundle == nil {
		fmt.Println(c.red("No model loaded. Use: loadmodel <filename>"))
		return
	}

	meta := c.modelBundle.Metadata
	fmt.Printf("%s %s trained on %s\n", c.cyan("Model:"), meta.ModelName, meta.Dataset)
	fmt.Printf("  k=%d threshold=%.4f positive=%q\n", meta.BestK, meta.Threshold, meta.PositiveLabel)
	fmt.Printf("  accuracy=%.4f kappa=%.4f auc=%.4f\n", meta.Accuracy, meta.Kappa, meta.AUC)
}

func (c *Commander) batchPredict(filename string) {
	if c.modelBundle == nil {
		fmt.Println(c.red("No model loaded. Use: loadmodel <filename>"))
		return
	}

	knn, ok := c.modelBundle.Model.(*models.KNN)
	if !ok {
		fmt.Println(c.red("Loaded bundle does not contain a KNN model"))
		return
	}

	classes := knn.GetClasses()
	if len(classes) != 2 {
		fmt.Println(c.red("Loaded model is not a binary classifier"))
		return
	}
	positive := classes[1]
	negative := classes[0]
	threshold := c.modelBundle.Metadata.Threshold

	total := 0
	positives := 0

	err := data.ProcessLargeFile(filename, 1000, func(batch *data.DataBatch) error {
		X := batch.X
		if c.modelBundle.Scaler != nil {
			var err error
			X, err = c.modelBundle.Scaler.Transform(batch.X)
			if err != nil {
				return err
			}
		}

		proba := knn.PredictProba(X)
		probs, err := evaluation.PositiveProba(proba, classes, positive)
		if err != nil {
			return err
		}

		labels := evaluation.ApplyThreshold(probs, threshold, positive, negative)
		for i, label := range labels {
			name := fmt.Sprintf("%d", label)
			if c.modelBundle.LabelEncoder != nil {
				if decoded, err := c.modelBundle.LabelEncoder.InverseTransform([]int{label}); err == nil {
					name = decoded[0]
				}
			}
			p, _ := probs[i].Float64()
			fmt.Printf("%d,%s,%.4f\n", total+i, name, p)
			if label == positive {
				positives++
			}
		}

		total += batch.Size
		return nil
	})
	if err != nil && err != io.EOF {
		fmt.Printf("%s Batch prediction failed: %v\n", c.red("✗"), err)
		return
	}

	fmt.Printf("%s Scored %d rows, %d positive at threshold %.4f\n",
		c.green("✓"), total, positives, threshold)
}
