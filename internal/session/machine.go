// Package session holds the per-user flow of the meal analyzer:
// intro, upload, confirm, analyzing and results.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/macrolens/internal/application"
	"github.com/bryanwahyu/macrolens/internal/domain/nutrition"
	"github.com/bryanwahyu/macrolens/internal/imageenc"
	"github.com/bryanwahyu/macrolens/internal/logger"
)

type State string

const (
	StateIntro     State = "intro"
	StateUpload    State = "upload"
	StateConfirm   State = "confirm"
	StateAnalyzing State = "analyzing"
	StateResults   State = "results"
)

// ErrInvalidTransition is returned when an action is not allowed in the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

const defaultFailureMessage = "We couldn't analyze your meal. Please try again with a different image."

// Analysis is what an Analyzer returns for one photo.
type Analysis struct {
	Result   nutrition.FoodAnalysisResult
	Degraded bool
}

type Analyzer interface {
	Analyze(ctx context.Context, image string) (Analysis, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, image string) (Analysis, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, image string) (Analysis, error) {
	return f(ctx, image)
}

type Recommender interface {
	Recommend(ctx context.Context, result nutrition.FoodAnalysisResult, profile *nutrition.UserProfile) ([]string, error)
}

// RecommenderFunc adapts a function to Recommender.
type RecommenderFunc func(ctx context.Context, result nutrition.FoodAnalysisResult, profile *nutrition.UserProfile) ([]string, error)

func (f RecommenderFunc) Recommend(ctx context.Context, result nutrition.FoodAnalysisResult, profile *nutrition.UserProfile) ([]string, error) {
	return f(ctx, result, profile)
}

// Notice is a user-facing message left behind by a failed action.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Snapshot is a copy of the machine's state handed to observers. Seq grows
// by one per transition; observers see snapshots in Seq order.
type Snapshot struct {
	SessionID       string                        `json:"sessionId"`
	Seq             uint64                        `json:"seq"`
	State           State                         `json:"state"`
	HasImage        bool                          `json:"hasImage"`
	Result          *nutrition.FoodAnalysisResult `json:"result,omitempty"`
	Degraded        bool                          `json:"degraded,omitempty"`
	Recommendations []string                      `json:"recommendations,omitempty"`
	Notice          *Notice                       `json:"notice,omitempty"`
	StartedAt       *time.Time                    `json:"analysisStartedAt,omitempty"`
	FinishedAt      *time.Time                    `json:"analysisFinishedAt,omitempty"`
}

// Machine is safe for concurrent use. Analyzer and recommender calls run
// without holding the lock; a Reset while one is in flight discards its result.
type Machine struct {
	id          string
	analyzer    Analyzer
	recommender Recommender
	clock       application.Clock

	mu              sync.Mutex
	state           State
	image           string
	result          *nutrition.FoodAnalysisResult
	degraded        bool
	recommendations []string
	notice          *Notice
	startedAt       *time.Time
	finishedAt      *time.Time
	gen             uint64
	seq             uint64
	observers       []func(Snapshot)

	// notifyMu is held from taking a snapshot until every observer has
	// returned, so deliveries never overtake each other.
	notifyMu sync.Mutex
}

// New returns a machine in the intro state. recommender may be nil; clock
// defaults to the system clock.
func New(analyzer Analyzer, recommender Recommender, clock application.Clock) *Machine {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Machine{
		id:          uuid.New().String(),
		analyzer:    analyzer,
		recommender: recommender,
		clock:       clock,
		state:       StateIntro,
	}
}

func (m *Machine) ID() string { return m.id }

// OnChange registers an observer called with a snapshot after every transition.
func (m *Machine) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start moves intro to upload.
func (m *Machine) Start() error {
	return m.transition(func() error {
		if m.state != StateIntro {
			return ErrInvalidTransition
		}
		m.state = StateUpload
		m.notice = nil
		return nil
	})
}

// SelectImage stores a data URI and moves to confirm. Non-image payloads
// leave the state unchanged and record a notice.
func (m *Machine) SelectImage(dataURI string) error {
	return m.transition(func() error {
		switch m.state {
		case StateIntro, StateUpload, StateConfirm:
		default:
			return ErrInvalidTransition
		}
		if !isImageDataURI(dataURI) {
			m.notice = &Notice{Title: "Invalid file type", Message: "Please select an image file."}
			return imageenc.ErrNotImage
		}
		m.image = dataURI
		m.state = StateConfirm
		m.notice = nil
		return nil
	})
}

// Cancel drops the selected image and returns to upload.
func (m *Machine) Cancel() error {
	return m.transition(func() error {
		if m.state != StateConfirm {
			return ErrInvalidTransition
		}
		m.image = ""
		m.state = StateUpload
		m.notice = nil
		return nil
	})
}

// Confirm runs the analysis for the selected image and blocks until it
// finishes. Only one analysis can be in flight: a second Confirm sees the
// analyzing state and fails with ErrInvalidTransition.
func (m *Machine) Confirm(ctx context.Context) error {
	var (
		image string
		gen   uint64
	)
	err := m.transition(func() error {
		if m.state != StateConfirm {
			return ErrInvalidTransition
		}
		now := m.clock.Now()
		m.state = StateAnalyzing
		m.startedAt, m.finishedAt = &now, nil
		m.notice = nil
		image, gen = m.image, m.gen
		return nil
	})
	if err != nil {
		return err
	}

	log := logger.L().With(zap.String("session_id", m.id))
	analysis, aerr := m.analyzer.Analyze(ctx, image)

	return m.transition(func() error {
		if m.gen != gen {
			log.Debug("discarding analysis finished after reset")
			return nil
		}
		now := m.clock.Now()
		m.finishedAt = &now
		if aerr != nil {
			log.Warn("analysis failed", zap.Error(aerr))
			m.state = StateUpload
			m.notice = &Notice{Title: "Analysis failed", Message: failureMessage(aerr)}
			return aerr
		}
		result := analysis.Result.Normalize()
		m.result = &result
		m.degraded = analysis.Degraded
		m.recommendations = nil
		m.state = StateResults
		return nil
	})
}

// Recommend fetches recommendations for the current result. Allowed only in results.
func (m *Machine) Recommend(ctx context.Context, profile *nutrition.UserProfile) error {
	var (
		result nutrition.FoodAnalysisResult
		gen    uint64
	)
	m.mu.Lock()
	if m.state != StateResults || m.result == nil {
		m.mu.Unlock()
		return ErrInvalidTransition
	}
	if m.recommender == nil {
		m.mu.Unlock()
		return errors.New("recommendations are not available")
	}
	result, gen = *m.result, m.gen
	m.mu.Unlock()

	recs, rerr := m.recommender.Recommend(ctx, result, profile)

	return m.transition(func() error {
		if m.gen != gen || m.state != StateResults {
			return nil
		}
		if rerr != nil {
			m.notice = &Notice{Title: "Recommendations unavailable", Message: rerr.Error()}
			return rerr
		}
		m.recommendations = append([]string(nil), recs...)
		m.notice = nil
		return nil
	})
}

// Reset returns to upload from any state, clearing the image, the result
// and recommendations. An analysis still in flight is discarded.
func (m *Machine) Reset() {
	_ = m.transition(func() error {
		m.gen++
		m.state = StateUpload
		m.image = ""
		m.result = nil
		m.degraded = false
		m.recommendations = nil
		m.notice = nil
		m.startedAt, m.finishedAt = nil, nil
		return nil
	})
}

// transition applies fn under the lock and notifies observers afterwards.
// Observers are not called when fn returns ErrInvalidTransition. An observer
// must not start another transition on the same machine.
func (m *Machine) transition(fn func() error) error {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	err := fn()
	if errors.Is(err, ErrInvalidTransition) {
		m.mu.Unlock()
		return err
	}
	m.seq++
	snap := m.snapshotLocked()
	observers := make([]func(Snapshot), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	return err
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{
		SessionID: m.id,
		Seq:       m.seq,
		State:     m.state,
		HasImage:  m.image != "",
		Degraded:  m.degraded,
		Notice:    m.notice,
	}
	if m.result != nil {
		r := *m.result
		r.FoodItems = append([]nutrition.FoodItem{}, m.result.FoodItems...)
		s.Result = &r
	}
	if m.recommendations != nil {
		s.Recommendations = append([]string(nil), m.recommendations...)
	}
	if m.startedAt != nil {
		t := *m.startedAt
		s.StartedAt = &t
	}
	if m.finishedAt != nil {
		t := *m.finishedAt
		s.FinishedAt = &t
	}
	return s
}

func isImageDataURI(s string) bool {
	meta, _, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok || !strings.HasPrefix(s, "data:") {
		return false
	}
	mt, _, _ := strings.Cut(meta, ";")
	return imageenc.IsImageMIME(mt)
}

func failureMessage(err error) string {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return defaultFailureMessage
}
