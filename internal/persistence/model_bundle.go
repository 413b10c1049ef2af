package persistence

import (
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"knntune/internal/models"
	"knntune/internal/preprocessing"
)

// ModelBundle is everything needed to score new data the way the tuning run
// did: the fitted model, the scaler, the label encoding and the chosen
// decision threshold.
type ModelBundle struct {
	Model        models.Model
	Scaler       *preprocessing.Scaler
	LabelEncoder *preprocessing.LabelEncoder
	Metadata     BundleMetadata
	CreatedAt    time.Time
}

type BundleMetadata struct {
	ModelName     string
	Dataset       string
	BestK         int
	Threshold     float64
	AUC           float64
	Accuracy      float64
	Kappa         float64
	Precision     float64
	Recall        float64
	F1Score       float64
	PositiveLabel string
	TrainingTime  time.Duration
	Features      []string
	Parameters    map[string]any
}

func NewModelBundle(model models.Model) *ModelBundle {
	return &ModelBundle{
		Model:     model,
		CreatedAt: time.Now(),
		Metadata: BundleMetadata{
			ModelName:  model.GetName(),
			Parameters: model.GetParams(),
		},
	}
}

func registerTypes() {
	gob.Register(&models.KNN{})
}

func (mb *ModelBundle) Save(filename string) error {
	registerTypes()

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(mb); err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	return nil
}

func LoadModelBundle(filename string) (*ModelBundle, error) {
	registerTypes()

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var bundle ModelBundle
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("failed to decode bundle: %w", err)
	}

	return &bundle, nil
}

func (mb *ModelBundle) SaveMetadata(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(file, "Model: %s\n", mb.Metadata.ModelName)
	fmt.Fprintf(file, "Dataset: %s\n", mb.Metadata.Dataset)
	fmt.Fprintf(file, "Created: %s\n", mb.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(file, "Best k: %d\n", mb.Metadata.BestK)
	fmt.Fprintf(file, "Threshold: %.4f (positive class %q)\n", mb.Metadata.Threshold, mb.Metadata.PositiveLabel)
	fmt.Fprintf(file, "AUC: %.4f\n", mb.Metadata.AUC)
	fmt.Fprintf(file, "Accuracy: %.4f\n", mb.Metadata.Accuracy)
	fmt.Fprintf(file, "Kappa: %.4f\n", mb.Metadata.Kappa)
	fmt.Fprintf(file, "Precision: %.4f\n", mb.Metadata.Precision)
	fmt.Fprintf(file, "Recall: %.4f\n", mb.Metadata.Recall)
	fmt.Fprintf(file, "F1 Score: %.4f\n", mb.Metadata.F1Score)
	fmt.Fprintf(file, "Training Time: %v\n", mb.Metadata.TrainingTime)

	return nil
}
