package httpserver

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
	"github.com/bryanwahyu/macrolens/internal/export"
	"github.com/bryanwahyu/macrolens/internal/middleware"
)

type exportRequest struct {
	FoodAnalysis    *nutrition.FoodAnalysisResult `json:"foodAnalysis"`
	Recommendations []string                      `json:"recommendations"`
}

func decodeExport(w http.ResponseWriter, req *http.Request) (exportRequest, error) {
	var body exportRequest
	if err := decodeBody(w, req, &body); err != nil {
		return body, fmt.Errorf("%w: %v", nutrition.ErrInvalidInput, err)
	}
	if body.FoodAnalysis == nil {
		return body, nutrition.ErrInvalidInput
	}
	return body, nil
}

// POST /api/export/csv
func (r *Router) handleExportCSV(w http.ResponseWriter, req *http.Request) error {
	body, err := decodeExport(w, req)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, body.FoodAnalysis.Normalize()); err != nil {
		middleware.IncrementExports("csv", true)
		return fmt.Errorf("%w: %v", errExport, err)
	}
	middleware.IncrementExports("csv", false)
	return writeAttachment(w, "text/csv; charset=utf-8", export.CSVFileName, buf.Bytes())
}

// POST /api/export/pdf
func (r *Router) handleExportPDF(w http.ResponseWriter, req *http.Request) error {
	body, err := decodeExport(w, req)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.WritePDF(&buf, body.FoodAnalysis.Normalize(), body.Recommendations, export.PDFOptions{}); err != nil {
		middleware.IncrementExports("pdf", true)
		return fmt.Errorf("%w: %v", errExport, err)
	}
	middleware.IncrementExports("pdf", false)
	return writeAttachment(w, "application/pdf", export.PDFFileName, buf.Bytes())
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) error {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(data)
	return err
}
