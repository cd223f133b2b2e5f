// Command macrolens analyzes a meal photo against a running macrolens server.
//
//	macrolens [flags] <photo>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/macrolens/internal/client"
	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
	"github.com/bryanwahyu/macrolens/internal/export"
	"github.com/bryanwahyu/macrolens/internal/imageenc"
	"github.com/bryanwahyu/macrolens/internal/logger"
	"github.com/bryanwahyu/macrolens/internal/session"
)

type options struct {
	server       string
	timeout      time.Duration
	recommend    bool
	goal         string
	activity     string
	restrictions string
	conditions   string
	csvPath      string
	pdfPath      string
	verbose      bool
	photo        string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("macrolens", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.server, "server", envOr("MACROLENS_SERVER", "http://localhost:8080"), "macrolens server URL")
	fs.DurationVar(&o.timeout, "timeout", 2*time.Minute, "overall timeout")
	fs.BoolVar(&o.recommend, "recommend", false, "fetch dietary recommendations after the analysis")
	fs.StringVar(&o.goal, "goal", "", "goal, e.g. \"lose weight\"")
	fs.StringVar(&o.activity, "activity", "", "activity level")
	fs.StringVar(&o.restrictions, "restrictions", "", "comma separated dietary restrictions")
	fs.StringVar(&o.conditions, "conditions", "", "comma separated health conditions")
	fs.StringVar(&o.csvPath, "csv", "", "write the analysis as CSV to this path")
	fs.StringVar(&o.pdfPath, "pdf", "", "write a PDF report to this path")
	fs.BoolVar(&o.verbose, "v", false, "verbose logging")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: macrolens [flags] <photo>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return o, errors.New("exactly one photo is required")
	}
	o.photo = fs.Arg(0)
	return o, nil
}

func (o options) profile() *nutrition.UserProfile {
	if o.goal == "" && o.activity == "" && o.restrictions == "" && o.conditions == "" {
		return nil
	}
	return &nutrition.UserProfile{
		Goal:                o.goal,
		ActivityLevel:       o.activity,
		DietaryRestrictions: splitList(o.restrictions),
		HealthConditions:    splitList(o.conditions),
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}
	if o.verbose {
		if err := logger.Init(); err == nil {
			defer logger.Sync()
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	api := client.New(o.server, nil)
	m := session.New(
		session.AnalyzerFunc(func(ctx context.Context, image string) (session.Analysis, error) {
			res, degraded, err := api.AnalyzeFoodImage(ctx, image)
			return session.Analysis{Result: res, Degraded: degraded}, err
		}),
		session.RecommenderFunc(func(ctx context.Context, res nutrition.FoodAnalysisResult, p *nutrition.UserProfile) ([]string, error) {
			return api.GenerateDietaryRecommendations(ctx, res, p), nil
		}),
		nil,
	)
	m.OnChange(func(s session.Snapshot) {
		logger.Debug("session transition", zap.String("session_id", s.SessionID), zap.String("state", string(s.State)))
		if s.State == session.StateAnalyzing {
			fmt.Fprintln(stderr, "Analyzing your meal...")
		}
	})

	m.Start()

	image, err := imageenc.EncodeFile(o.photo)
	if err != nil {
		if errors.Is(err, imageenc.ErrNotImage) {
			fmt.Fprintln(stderr, "Invalid file type: Please select an image file.")
		} else {
			fmt.Fprintf(stderr, "Cannot read photo: %v\n", err)
		}
		return 1
	}
	if info, err := os.Stat(o.photo); err == nil && imageenc.Oversized(int(info.Size())) {
		fmt.Fprintln(stderr, "Warning: photos up to 10MB are supported, this one is larger.")
	}

	if err := m.SelectImage(image); err != nil {
		printNotice(stderr, m.Snapshot().Notice, err)
		return 1
	}
	if err := m.Confirm(ctx); err != nil {
		printNotice(stderr, m.Snapshot().Notice, err)
		return 1
	}

	if o.recommend {
		if err := m.Recommend(ctx, o.profile()); err != nil {
			printNotice(stderr, m.Snapshot().Notice, err)
		}
	}

	snap := m.Snapshot()
	renderResult(stdout, *snap.Result, snap.Degraded)
	if len(snap.Recommendations) > 0 {
		renderRecommendations(stdout, snap.Recommendations)
	}

	writeExports(stderr, o, *snap.Result, snap.Recommendations)
	return 0
}

// writeExports never fails the command: problems are reported and skipped.
func writeExports(stderr io.Writer, o options, result nutrition.FoodAnalysisResult, recs []string) {
	if o.csvPath != "" {
		err := writeFile(o.csvPath, func(w io.Writer) error { return export.WriteCSV(w, result) })
		reportExport(stderr, "CSV", o.csvPath, err)
	}
	if o.pdfPath != "" {
		err := writeFile(o.pdfPath, func(w io.Writer) error {
			return export.WritePDF(w, result, recs, export.PDFOptions{GeneratedAt: time.Now()})
		})
		reportExport(stderr, "PDF", o.pdfPath, err)
	}
}

func reportExport(stderr io.Writer, kind, path string, err error) {
	if err != nil {
		fmt.Fprintf(stderr, "Export failed: could not write %s to %s: %v\n", kind, path, err)
		return
	}
	fmt.Fprintf(stderr, "%s saved to %s\n", kind, path)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printNotice(w io.Writer, n *session.Notice, err error) {
	if n != nil {
		fmt.Fprintf(w, "%s: %s\n", n.Title, n.Message)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
