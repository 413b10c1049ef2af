package models

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type Model interface {
	Fit(X [][]decimal.Decimal, y []int) error
	Predict(X [][]decimal.Decimal) []int
	PredictProba(X [][]decimal.Decimal) [][]decimal.Decimal
	GetName() string
	GetParams() map[string]any
	GetClasses() []int
	Reset()
}

type BaseModel struct {
	Name    string
	Params  map[string]any
	Classes []int
}

func (bm *BaseModel) GetName() string {
	return bm.Name
}

func (bm *BaseModel) GetParams() map[string]any {
	return bm.Params
}

func (bm *BaseModel) GetClasses() []int {
	return bm.Classes
}

type InputValidationError struct {
	Field  string
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ExtractClasses returns the distinct labels in ascending order, so class
// positions in probability rows are stable across runs.
func ExtractClasses(y []int) []int {
	classMap := make(map[int]bool)
	for _, label := range y {
		classMap[label] = true
	}

	classes := make([]int, 0, len(classMap))
	for class := range classMap {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	return classes
}
