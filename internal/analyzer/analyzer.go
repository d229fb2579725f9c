// Package analyzer drives one analysis cycle: build the prompt, call the
// model, validate the structured response, split it into report and updated
// profile, and hand both to the store. Failures of any kind leave the store
// untouched.
package analyzer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	"github.com/halcyonlabs/reverie/internal/config"
	"github.com/halcyonlabs/reverie/internal/prompt"
	"github.com/halcyonlabs/reverie/internal/store"
	"github.com/halcyonlabs/reverie/pkg/models"
)

// ModelCaller is the external model boundary: one request in, one raw
// structured payload out.
type ModelCaller interface {
	Generate(ctx context.Context, req *prompt.Request) ([]byte, error)
}

// Input is one analysis submission. Photo bytes live only for the duration
// of the call.
type Input struct {
	Text          string
	JournalPhotos []models.Photo
	SpacePhotos   []models.Photo
}

// Analyzer orchestrates analysis cycles. There is exactly one in-flight
// slot; a second invocation while one is pending gets ErrBusy.
type Analyzer struct {
	store   *store.Store
	model   ModelCaller
	opts    prompt.Options
	timeout time.Duration
	apiKey  string

	slot *semaphore.Weighted

	mu       sync.RWMutex
	status   Status
	onChange func(Status)

	analyses metric.Int64Counter
}

// New creates an analyzer over the given store and model boundary.
func New(st *store.Store, model ModelCaller, cfg *config.Config) *Analyzer {
	meter := otel.Meter("reverie/analyzer")
	analyses, err := meter.Int64Counter("reverie.analyses",
		metric.WithDescription("Completed analysis cycles by outcome"))
	if err != nil {
		log.Warn().Err(err).Msg("Metrics unavailable")
	}

	return &Analyzer{
		store: st,
		model: model,
		opts: prompt.Options{
			HistoryWindow: cfg.HistoryWindow,
			TruncateAt:    cfg.TruncateAt,
		},
		timeout:  time.Duration(cfg.RequestTimeoutSecs) * time.Second,
		apiKey:   cfg.APIKey,
		slot:     semaphore.NewWeighted(1),
		status:   Status{State: StateIdle},
		analyses: analyses,
	}
}

// SetOnStatusChange registers a callback observing status transitions.
// Must be called before the first Analyze.
func (a *Analyzer) SetOnStatusChange(fn func(Status)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = fn
}

// Status returns the current snapshot.
func (a *Analyzer) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Reset returns the orchestrator to idle, e.g. after the journal is
// cleared. No-op while a request is in flight.
func (a *Analyzer) Reset() {
	if !a.slot.TryAcquire(1) {
		return
	}
	defer a.slot.Release(1)
	a.setStatus(Status{State: StateIdle})
}

// Analyze runs one full cycle and returns the report on success. All
// failures are returned as errors AND reflected in the status; the store is
// mutated only on success, and then atomically: entry appended, profile
// replaced, both persisted together.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*models.AnalysisResult, error) {
	if !a.slot.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer a.slot.Release(1)

	// The entry records what was actually submitted, so capture the photo
	// counts before the buffers are released.
	journalCount := len(in.JournalPhotos)
	spaceCount := len(in.SpacePhotos)

	if a.apiKey == "" {
		return nil, a.fail(ErrMissingAPIKey)
	}

	// Requesting is entered only once validation has passed; a rejected
	// submission goes straight to Failed.
	req, err := prompt.Build(in.Text, in.JournalPhotos, in.SpacePhotos,
		a.store.History(), a.store.Profile(), a.opts)
	if err != nil {
		return nil, a.fail(err)
	}

	a.setStatus(Status{State: StateRequesting})

	log.Debug().
		Int("tokenEstimate", req.TokenEstimate).
		Int("journalPhotos", journalCount).
		Int("spacePhotos", spaceCount).
		Msg("Dispatching analysis request")

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	raw, callErr := a.model.Generate(callCtx, req)
	cancel()

	// Images are not retained beyond the call that used them.
	in.JournalPhotos, in.SpacePhotos = nil, nil
	req.Parts = nil

	if callErr != nil {
		return nil, a.fail(&TransportError{Err: callErr})
	}

	resp, err := models.DecodeModelResponse(raw)
	if err != nil {
		return nil, a.fail(&SchemaError{Err: err})
	}

	entry := models.NewJournalEntry(in.Text, journalCount, spaceCount)
	a.store.Append(entry)
	a.store.SetProfile(resp.PatternProfile)
	if err := a.store.Persist(); err != nil {
		// Best-effort cache: the user still gets their report.
		log.Warn().Err(err).Msg("Failed to persist journal state")
	}

	result := resp.AnalysisResult
	a.setStatus(Status{State: StateSucceeded, Result: &result})
	a.count(ctx, "succeeded")
	return &result, nil
}

// fail records the failure, logging schema problems distinctly from
// transport ones, and leaves the store untouched.
func (a *Analyzer) fail(err error) error {
	var schemaErr *SchemaError
	switch {
	case errors.As(err, &schemaErr):
		log.Error().Err(err).Msg("Model response rejected by schema validation")
	case errors.Is(err, prompt.ErrNoContent):
		log.Debug().Msg("Rejected empty submission")
	default:
		log.Error().Err(err).Msg("Analysis failed")
	}

	a.setStatus(Status{State: StateFailed, Message: UserMessage(err)})
	a.count(context.Background(), "failed")
	return err
}

func (a *Analyzer) setStatus(status Status) {
	a.mu.Lock()
	a.status = status
	onChange := a.onChange
	a.mu.Unlock()

	if onChange != nil {
		onChange(status)
	}
}

func (a *Analyzer) count(ctx context.Context, outcome string) {
	if a.analyses == nil {
		return
	}
	a.analyses.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
