package prompt

import (
    "fmt"
    "strconv"
    "strings"

    "github.com/bryanwahyu/macrolens/internal/domain/nutrition"
)

// FormatMacros renders macros as "<cal> calories, <p>g protein, ...".
func FormatMacros(m nutrition.Macros) string {
    return fmt.Sprintf("%s calories, %sg protein, %sg fat, %sg carbs, %sg sugar, %sg fiber",
        num(m.Calories), num(m.Protein), num(m.Fat), num(m.Carbs), num(m.Sugar), num(m.Fiber))
}

// FoodItemsText is one line per item, in model order.
func FoodItemsText(items []nutrition.FoodItem) string {
    lines := make([]string, 0, len(items))
    for _, it := range items {
        lines = append(lines, it.Name+": "+FormatMacros(it.Macros))
    }
    return strings.Join(lines, "\n")
}

// TotalMacrosText is the aggregate line.
func TotalMacrosText(total nutrition.Macros) string {
    return "Total: " + FormatMacros(total)
}

// UserContextText returns an empty string when there is no profile.
func UserContextText(p *nutrition.UserProfile) string {
    if p == nil {
        return ""
    }
    var sb strings.Builder
    sb.WriteString("USER CONTEXT:\n")
    sb.WriteString("Goal: " + orNone(p.Goal) + "\n")
    sb.WriteString("Activity level: " + orNone(p.ActivityLevel) + "\n")
    sb.WriteString("Dietary restrictions: " + listOrNone(p.DietaryRestrictions) + "\n")
    sb.WriteString("Health conditions: " + listOrNone(p.HealthConditions))
    return sb.String()
}

// GetRecommendationsPrompt builds the full recommendation prompt for one analysis.
// Output is deterministic for a given result and profile.
func GetRecommendationsPrompt(result nutrition.FoodAnalysisResult, profile *nutrition.UserProfile) string {
    return fmt.Sprintf(`You are a nutrition coach providing helpful dietary recommendations based on meal analysis.

MEAL ANALYSIS:
%s
%s
Confidence level: %s
%s

TASK:
Generate 3-5 personalized dietary recommendations based on the analyzed meal. Your recommendations should:
1. Be specific and actionable
2. Focus on improving nutritional balance
3. Consider the overall macro distribution
4. Suggest potential improvements or alternatives
5. Be supportive and educational in tone

YOUR RESPONSE MUST BE A JSON OBJECT with no additional text:
{"recommendations": ["First recommendation", "Second recommendation", "Third recommendation"]}

Each recommendation should be complete, clear, and personalized to the meal analysis.`,
        FoodItemsText(result.FoodItems),
        TotalMacrosText(result.TotalMacros),
        result.ConfidenceLevel,
        UserContextText(profile),
    )
}

func num(v float64) string {
    return strconv.FormatFloat(v, 'f', -1, 64)
}

func orNone(s string) string {
    if strings.TrimSpace(s) == "" {
        return "none"
    }
    return s
}

func listOrNone(xs []string) string {
    if len(xs) == 0 {
        return "none"
    }
    return strings.Join(xs, ", ")
}
