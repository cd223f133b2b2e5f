package nutrition

// Confidence enum
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// Valid reports whether c is one of the three known levels.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// Macros value object
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
	Sugar    float64 `json:"sugar"`
	Fiber    float64 `json:"fiber"`
}

// Portion of a single detected item
type Portion struct {
	HumanReadable string  `json:"humanReadable"`
	Grams         float64 `json:"grams"`
	Ounces        float64 `json:"ounces"`
}

type FoodItem struct {
	Name    string  `json:"name"`
	Portion Portion `json:"portion"`
	Macros  Macros  `json:"macros"`
}

// FoodAnalysisResult is what the analysis proxy returns for one photo.
// TotalMacros comes from the model as-is; it is not recomputed from the items.
type FoodAnalysisResult struct {
	FoodItems       []FoodItem `json:"foodItems"`
	TotalMacros     Macros     `json:"totalMacros"`
	ConfidenceLevel Confidence `json:"confidenceLevel"`
}

// UserProfile is optional context for recommendations only.
type UserProfile struct {
	Goal                string   `json:"goal"`
	ActivityLevel       string   `json:"activityLevel"`
	DietaryRestrictions []string `json:"dietaryRestrictions"`
	HealthConditions    []string `json:"healthConditions"`
}

// DefaultResult is the "nothing found" result used when model output cannot be parsed.
func DefaultResult() FoodAnalysisResult {
	return FoodAnalysisResult{
		FoodItems:       []FoodItem{},
		TotalMacros:     Macros{},
		ConfidenceLevel: ConfidenceLow,
	}
}

// Normalize fixes the fields the model may leave out: a nil item list becomes
// empty and an unknown confidence becomes Low.
func (r FoodAnalysisResult) Normalize() FoodAnalysisResult {
	if r.FoodItems == nil {
		r.FoodItems = []FoodItem{}
	}
	if !r.ConfidenceLevel.Valid() {
		r.ConfidenceLevel = ConfidenceLow
	}
	return r
}

// Empty reports whether no food was detected.
func (r FoodAnalysisResult) Empty() bool {
	return len(r.FoodItems) == 0
}
