package export

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
)

const disclaimer = "These recommendations are for general guidance only and are not professional medical or nutritional advice. " +
	"Please consult with a registered dietitian or healthcare provider for personalized advice."

// PDFOptions tunes the document. GeneratedAt zero means time.Now().
type PDFOptions struct {
	Title       string
	GeneratedAt time.Time
}

type rgb struct{ r, g, b int }

var badgeColors = map[nutrition.Confidence][2]rgb{
	nutrition.ConfidenceHigh:   {{220, 252, 231}, {22, 101, 52}},
	nutrition.ConfidenceMedium: {{254, 249, 195}, {133, 77, 14}},
	nutrition.ConfidenceLow:    {{254, 226, 226}, {185, 28, 28}},
}

// WritePDF renders an A4 document with totals, one card per item and, when
// recs is not empty, the recommendations with a disclaimer. Pages break automatically.
func WritePDF(w io.Writer, result nutrition.FoodAnalysisResult, recs []string, opts PDFOptions) error {
	pdf := buildPDF(result, recs, opts)
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func buildPDF(result nutrition.FoodAnalysisResult, recs []string, opts PDFOptions) *fpdf.Fpdf {
	if opts.Title == "" {
		opts.Title = "Meal Analysis"
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(opts.Title, true)
	pdf.SetCreator("macrolens", true)
	pdf.SetCreationDate(opts.GeneratedAt)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(107, 114, 128)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	contentW := pageW - left - right

	// header
	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(contentW, 12, tr(opts.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(107, 114, 128)
	pdf.CellFormat(contentW, 5, opts.GeneratedAt.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	conf := result.ConfidenceLevel
	if !conf.Valid() {
		conf = nutrition.ConfidenceLow
	}
	colors := badgeColors[conf]
	badge := string(conf) + " Confidence"
	pdf.SetFont("Helvetica", "B", 10)
	badgeW := pdf.GetStringWidth(badge) + 10
	pdf.SetX(left + (contentW-badgeW)/2)
	pdf.SetFillColor(colors[0].r, colors[0].g, colors[0].b)
	pdf.SetTextColor(colors[1].r, colors[1].g, colors[1].b)
	pdf.CellFormat(badgeW, 7, badge, "", 1, "C", true, 0, "")
	pdf.Ln(6)

	// totals
	sectionTitle(pdf, "Total Macronutrients")
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(contentW, 10, Kcal(result.TotalMacros.Calories)+" kcal", "", 1, "L", false, 0, "")
	macroGrid(pdf, contentW, result.TotalMacros)
	pdf.Ln(6)

	// items
	sectionTitle(pdf, "Food Items")
	if result.Empty() {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.SetTextColor(107, 114, 128)
		pdf.CellFormat(contentW, 8, "No food items were detected in this photo.", "", 1, "L", false, 0, "")
	}
	for _, item := range result.FoodItems {
		foodItemCard(pdf, tr, contentW, item)
	}

	if len(recs) > 0 {
		pdf.Ln(4)
		sectionTitle(pdf, "Dietary Recommendations")
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetFillColor(254, 243, 199)
		pdf.SetTextColor(180, 83, 9)
		pdf.MultiCell(contentW, 5, disclaimer, "", "L", true)
		pdf.Ln(3)
		pdf.SetTextColor(17, 24, 39)
		for i, rec := range recs {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(8, 6, fmt.Sprintf("%d.", i+1), "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(contentW-8, 6, tr(rec), "", "L", false)
			pdf.Ln(1)
		}
	}
	return pdf
}

func sectionTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 15)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(0, 9, title, "", 1, "L", false, 0, "")
}

func macroGrid(pdf *fpdf.Fpdf, width float64, m nutrition.Macros) {
	cells := []struct{ label, value string }{
		{"Protein", Grams(m.Protein) + "g"},
		{"Fat", Grams(m.Fat) + "g"},
		{"Carbs", Grams(m.Carbs) + "g"},
		{"Sugar", Grams(m.Sugar) + "g"},
		{"Fiber", Grams(m.Fiber) + "g"},
	}
	cellW := width / float64(len(cells))

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(17, 24, 39)
	for _, c := range cells {
		pdf.CellFormat(cellW, 6, c.value, "", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(107, 114, 128)
	for _, c := range cells {
		pdf.CellFormat(cellW, 5, c.label, "", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
}

func foodItemCard(pdf *fpdf.Fpdf, tr func(string) string, width float64, item nutrition.FoodItem) {
	// keep a card on one page
	_, pageH := pdf.GetPageSize()
	if pdf.GetY()+30 > pageH-15 {
		pdf.AddPage()
	}

	pdf.SetDrawColor(229, 231, 235)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(17, 24, 39)
	pdf.CellFormat(width-30, 7, tr(item.Name), "LT", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(30, 7, Kcal(item.Macros.Calories)+" kcal", "RT", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(107, 114, 128)
	portion := fmt.Sprintf("%s | %sg", item.Portion.HumanReadable, Grams(item.Portion.Grams))
	pdf.CellFormat(width, 5, tr(portion), "LR", 1, "L", false, 0, "")

	x := pdf.GetX()
	y := pdf.GetY()
	macroGrid(pdf, width, item.Macros)
	pdf.Rect(x, y, width, pdf.GetY()-y, "D")
	pdf.Ln(4)
}
