package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
	"github.com/bryanwahyu/macrolens/internal/export"
)

func renderResult(w io.Writer, r nutrition.FoodAnalysisResult, degraded bool) {
	if degraded || r.Empty() {
		fmt.Fprintln(w, "No food items could be identified in this photo.")
	}
	fmt.Fprintf(w, "Confidence: %s\n\n", r.ConfidenceLevel)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Food\tPortion\tkcal\tProtein\tFat\tCarbs\tSugar\tFiber\t")
	for _, it := range r.FoodItems {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%sg\t%sg\t%sg\t%sg\t%sg\t\n",
			it.Name, portion(it.Portion), export.Kcal(it.Macros.Calories),
			export.Grams(it.Macros.Protein), export.Grams(it.Macros.Fat), export.Grams(it.Macros.Carbs),
			export.Grams(it.Macros.Sugar), export.Grams(it.Macros.Fiber))
	}
	t := r.TotalMacros
	fmt.Fprintf(tw, "Total\t\t%s\t%sg\t%sg\t%sg\t%sg\t%sg\t\n",
		export.Kcal(t.Calories), export.Grams(t.Protein), export.Grams(t.Fat),
		export.Grams(t.Carbs), export.Grams(t.Sugar), export.Grams(t.Fiber))
	tw.Flush()
}

func portion(p nutrition.Portion) string {
	switch {
	case p.HumanReadable != "" && p.Grams > 0:
		return fmt.Sprintf("%s (%sg)", p.HumanReadable, export.Kcal(p.Grams))
	case p.HumanReadable != "":
		return p.HumanReadable
	case p.Grams > 0:
		return export.Kcal(p.Grams) + "g"
	}
	return "-"
}

func renderRecommendations(w io.Writer, recs []string) {
	fmt.Fprintln(w, "\nRecommendations:")
	for i, r := range recs {
		fmt.Fprintf(w, "  %d. %s\n", i+1, r)
	}
}
