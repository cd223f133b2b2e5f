package prompt

import (
	"strings"
	"testing"

	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
)

func sampleResult() nutrition.FoodAnalysisResult {
	return nutrition.FoodAnalysisResult{
		FoodItems: []nutrition.FoodItem{
			{Name: "Grilled Chicken Breast", Macros: nutrition.Macros{Calories: 165, Protein: 31, Fat: 3.6}},
			{Name: "Brown Rice", Macros: nutrition.Macros{Calories: 215, Protein: 5, Fat: 1.8, Carbs: 45, Fiber: 3.5}},
		},
		TotalMacros:     nutrition.Macros{Calories: 380, Protein: 36, Fat: 5.4, Carbs: 45, Fiber: 3.5},
		ConfidenceLevel: nutrition.ConfidenceHigh,
	}
}

func TestFoodItemsText(t *testing.T) {
	got := FoodItemsText(sampleResult().FoodItems)
	want := "Grilled Chicken Breast: 165 calories, 31g protein, 3.6g fat, 0g carbs, 0g sugar, 0g fiber\n" +
		"Brown Rice: 215 calories, 5g protein, 1.8g fat, 45g carbs, 0g sugar, 3.5g fiber"
	if got != want {
		t.Errorf("FoodItemsText =\n%s\nexpected\n%s", got, want)
	}
}

func TestTotalMacrosText(t *testing.T) {
	got := TotalMacrosText(sampleResult().TotalMacros)
	if got != "Total: 380 calories, 36g protein, 5.4g fat, 45g carbs, 0g sugar, 3.5g fiber" {
		t.Errorf("unexpected total line %q", got)
	}
}

func TestUserContextText(t *testing.T) {
	if got := UserContextText(nil); got != "" {
		t.Errorf("expected empty context without profile, got %q", got)
	}

	got := UserContextText(&nutrition.UserProfile{
		Goal:                "weight loss",
		DietaryRestrictions: []string{"vegetarian", "gluten-free"},
	})
	for _, want := range []string{
		"Goal: weight loss",
		"Activity level: none",
		"Dietary restrictions: vegetarian, gluten-free",
		"Health conditions: none",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected context to contain %q, got %q", want, got)
		}
	}
}

func TestGetRecommendationsPromptDeterministic(t *testing.T) {
	p := &nutrition.UserProfile{Goal: "maintenance"}
	a := GetRecommendationsPrompt(sampleResult(), p)
	b := GetRecommendationsPrompt(sampleResult(), p)
	if a != b {
		t.Fatal("prompt must be deterministic")
	}
	if !strings.Contains(a, "Confidence level: High") {
		t.Error("expected confidence line in prompt")
	}
	if !strings.Contains(a, "USER CONTEXT:") {
		t.Error("expected user context block in prompt")
	}
	if strings.Contains(GetRecommendationsPrompt(sampleResult(), nil), "USER CONTEXT:") {
		t.Error("did not expect user context block without profile")
	}
}
