// Package export renders an analysis as CSV or PDF. Pure formatting, no I/O
// beyond the supplied writer.
package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
)

const (
	CSVFileName = "meal-analysis.csv"
	PDFFileName = "meal-analysis.pdf"
)

var csvHeader = []string{"Food Item", "Calories (kcal)", "Protein (g)", "Fat (g)", "Carbs (g)", "Sugar (g)", "Fiber (g)"}

// WriteCSV writes the header, one row per food item and a final Total row.
func WriteCSV(w io.Writer, result nutrition.FoodAnalysisResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, item := range result.FoodItems {
		if err := cw.Write(csvRow(item.Name, item.Macros)); err != nil {
			return err
		}
	}
	if err := cw.Write(csvRow("Total", result.TotalMacros)); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// CSV is WriteCSV into a string.
func CSV(result nutrition.FoodAnalysisResult) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, result); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func csvRow(name string, m nutrition.Macros) []string {
	return []string{
		name,
		Kcal(m.Calories),
		Grams(m.Protein),
		Grams(m.Fat),
		Grams(m.Carbs),
		Grams(m.Sugar),
		Grams(m.Fiber),
	}
}

// Kcal rounds calories to a whole number.
func Kcal(v float64) string {
	return strconv.FormatFloat(math.Round(v), 'f', 0, 64)
}

// Grams rounds to one decimal place.
func Grams(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', 1, 64)
}
