// Package gateway is the single typed entry point for all operations the
// presentation layer may perform: image persistence, vision analysis,
// record queries, feedback. Each request is a tagged operation object;
// the gateway validates it, routes it to the record store and/or the
// vision collaborator, and returns a uniform result.
//
// Collaborator failures on analysis-producing operations never surface
// as errors: they are synthesized into persisted error records and
// returned normally. Store and query failures surface as *Error with a
// generic message; the cause is logged, not exposed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/outfit-lens/internal/analysis"
	"github.com/fpang/outfit-lens/internal/cache"
	"github.com/fpang/outfit-lens/internal/occasion"
	"github.com/fpang/outfit-lens/internal/store"
	"github.com/fpang/outfit-lens/internal/visqueue"
)

// OpType tags an operation request.
type OpType string

const (
	OpInitStorage    OpType = "INIT_STORAGE"
	OpSaveImage      OpType = "SAVE_IMAGE"
	OpAnalyzeOutfit  OpType = "ANALYZE_OUTFIT"
	OpAnalyzeDetails OpType = "ANALYZE_DETAILS"
	OpMatchOccasion  OpType = "MATCH_OCCASION"
	OpGetSuggestions OpType = "GET_SUGGESTIONS"
	OpStoreAnalysis  OpType = "STORE_ANALYSIS"
	OpFetchAnalyses  OpType = "FETCH_ANALYSES"
	OpGetAnalysis    OpType = "GET_ANALYSIS"
	OpDeleteAnalysis OpType = "DELETE_ANALYSIS"
	OpClearAnalyses  OpType = "CLEAR_ANALYSES"
	OpSearchAnalyses OpType = "SEARCH_ANALYSES"
	OpGetStats       OpType = "GET_STATS"
	OpSaveFeedback   OpType = "SAVE_FEEDBACK"
	OpRemoveFeedback OpType = "REMOVE_FEEDBACK"
	OpGetFeedback    OpType = "GET_FEEDBACK"
	OpClearFeedback  OpType = "CLEAR_FEEDBACK"
)

// Operation is the tagged request envelope. The Type determines which
// additional fields are required.
type Operation struct {
	Type       OpType            `json:"type"`
	ImageData  string            `json:"imageData,omitempty"`
	ImageID    string            `json:"imageId,omitempty"`
	ID         string            `json:"id,omitempty"`
	AnalysisID string            `json:"analysisId,omitempty"`
	Occasion   string            `json:"occasion,omitempty"`
	Query      string            `json:"query,omitempty"`
	Feedback   analysis.Vote     `json:"feedback,omitempty"`
	Filters    *analysis.Filters `json:"filters,omitempty"`
	Analysis   *analysis.Record  `json:"analysis,omitempty"`
}

// ErrValidation marks a request rejected before any side effect: an
// unknown tag or a missing required field.
var ErrValidation = errors.New("invalid operation")

// Error is the failure envelope for store and query operations. It
// carries only a generic, non-sensitive message.
type Error struct {
	Op  OpType
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// InitResult reports the outcome of storage initialization.
type InitResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ImageResult carries the confirmed ID of a saved image.
type ImageResult struct {
	ImageID string `json:"imageId"`
}

// SuccessResult is the boolean envelope for delete/clear/feedback operations.
type SuccessResult struct {
	Success bool `json:"success"`
}

// Analyzer is the vision collaborator boundary. Tests inject fakes.
type Analyzer interface {
	AnalyzeOutfit(ctx context.Context, imageData string) (*analysis.Scores, error)
	AnalyzeDetails(ctx context.Context, imageData string, basic *analysis.Scores) (*analysis.Details, error)
	StyleSuggestions(ctx context.Context, imageData, occasion string) ([]string, error)
}

// Gateway dispatches operations. Construct with New; all collaborators
// are injected, never ambient.
type Gateway struct {
	store    *store.Store
	vision   Analyzer
	cache    *cache.Cache
	debounce *cache.Debouncer
	queue    *visqueue.Queue
	now      func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCache overrides the default result cache.
func WithCache(c *cache.Cache) Option {
	return func(g *Gateway) { g.cache = c }
}

// WithDebouncer overrides the default stale-serve debouncer.
func WithDebouncer(d *cache.Debouncer) Option {
	return func(g *Gateway) { g.debounce = d }
}

// WithQueue installs a visibility-gated queue for analysis operations.
func WithQueue(q *visqueue.Queue) Option {
	return func(g *Gateway) { g.queue = q }
}

// WithClock injects the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New creates a Gateway over the given store and vision collaborator.
func New(st *store.Store, vision Analyzer, opts ...Option) *Gateway {
	g := &Gateway{
		store:  st,
		vision: vision,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.cache == nil {
		g.cache = cache.New()
	}
	if g.debounce == nil {
		g.debounce = cache.NewDebouncer(0, g.now)
	}
	return g
}

// Cache exposes the result cache so the server can schedule sweeps.
func (g *Gateway) Cache() *cache.Cache { return g.cache }

// Queue exposes the visibility queue, if one is installed.
func (g *Gateway) Queue() *visqueue.Queue { return g.queue }

// Execute validates and dispatches one operation. Each call is
// independent; there is no cross-operation transaction.
func (g *Gateway) Execute(ctx context.Context, op *Operation) (any, error) {
	if op == nil || op.Type == "" {
		return nil, fmt.Errorf("%w: missing operation type", ErrValidation)
	}
	log.Debug().Str("operation", string(op.Type)).Msg("Executing operation")

	switch op.Type {
	case OpInitStorage:
		return g.initStorage(op)
	case OpSaveImage:
		return g.saveImage(op)
	case OpAnalyzeOutfit:
		return g.analyzeOutfit(ctx, op)
	case OpAnalyzeDetails:
		return g.analyzeDetails(ctx, op)
	case OpMatchOccasion:
		return g.matchOccasion(ctx, op)
	case OpGetSuggestions:
		return g.getSuggestions(ctx, op)
	case OpStoreAnalysis:
		return g.storeAnalysis(op)
	case OpFetchAnalyses:
		return g.fetchAnalyses(op)
	case OpGetAnalysis:
		return g.getAnalysis(op)
	case OpDeleteAnalysis:
		return g.deleteAnalysis(op)
	case OpClearAnalyses:
		return g.clearAnalyses(op)
	case OpSearchAnalyses:
		return g.searchAnalyses(op)
	case OpGetStats:
		return g.getStats(op)
	case OpSaveFeedback:
		return g.saveFeedback(op)
	case OpRemoveFeedback:
		return g.removeFeedback(op)
	case OpGetFeedback:
		return g.getFeedback(op)
	case OpClearFeedback:
		return g.clearFeedback(op)
	}
	return nil, fmt.Errorf("%w: unknown operation type %q", ErrValidation, op.Type)
}

// fail logs the underlying cause and returns the generic error envelope.
func (g *Gateway) fail(op OpType, msg string, cause error) error {
	log.Error().Err(cause).Str("operation", string(op)).Msg("Operation failed")
	return &Error{Op: op, Msg: msg}
}

// --- Storage and image operations ---

func (g *Gateway) initStorage(op *Operation) (any, error) {
	if err := g.store.EnsureDirs(); err != nil {
		log.Error().Err(err).Msg("Storage initialization failed")
		return &InitResult{Success: false, Message: "storage initialization failed"}, nil
	}
	return &InitResult{Success: true}, nil
}

func (g *Gateway) saveImage(op *Operation) (any, error) {
	if op.ImageData == "" {
		return nil, fmt.Errorf("%w: SAVE_IMAGE requires imageData", ErrValidation)
	}
	id, err := g.store.SaveImage(op.ImageData, op.ImageID)
	if err != nil {
		return nil, g.fail(op.Type, "failed to save image", err)
	}
	return &ImageResult{ImageID: id}, nil
}

// --- Analysis-producing operations ---

// basicScores obtains the outfit's basic score vector, reusing a cached
// one when fresh. This is the shared first step of every analysis chain.
func (g *Gateway) basicScores(ctx context.Context, imageData string) (*analysis.Scores, error) {
	key := cache.Key(imageData, "outfit-analysis")
	if v, ok := g.cache.Get(key); ok {
		log.Debug().Msg("Using cached outfit scores")
		return v.(*analysis.Scores), nil
	}
	scores, err := g.vision.AnalyzeOutfit(ctx, imageData)
	if err != nil {
		return nil, err
	}
	g.cache.Set(key, scores)
	return scores, nil
}

// runAnalysis is the shared skeleton of the four analysis operations:
// debounce check, visibility gating, image persistence, collaborator
// call, record synthesis (success or error), persistence. produce runs
// the operation-specific collaborator chain.
func (g *Gateway) runAnalysis(ctx context.Context, op *Operation, typ analysis.Type, subject string, produce func(ctx context.Context) (any, error)) (any, error) {
	if v, ok := g.debounce.Recent(subject); ok {
		log.Debug().Str("type", string(typ)).Msg("Serving debounced analysis result")
		return v, nil
	}

	task := func(ctx context.Context) (any, error) {
		imageID, err := g.store.SaveImage(op.ImageData, op.ImageID)
		if err != nil {
			return nil, fmt.Errorf("image persistence: %w", err)
		}

		start := g.now()
		result, err := produce(ctx)
		elapsed := g.now().Sub(start)

		var rec *analysis.Record
		if err != nil {
			log.Warn().Err(err).Str("type", string(typ)).Msg("Analysis failed; recording error result")
			rec = analysis.NewErrorRecord(imageID, typ, err, g.now(), elapsed)
		} else {
			rec = analysis.NewSuccessRecord(imageID, typ, result, g.now(), elapsed)
		}
		if err := g.store.SaveAnalysis(rec); err != nil {
			return nil, fmt.Errorf("record persistence: %w", err)
		}
		return rec, nil
	}

	var v any
	var err error
	if g.queue != nil {
		v, err = g.queue.Submit(ctx, task)
	} else {
		v, err = task(ctx)
	}
	if err != nil {
		return nil, g.fail(op.Type, "analysis could not be completed", err)
	}
	g.debounce.Record(subject, v)
	return v, nil
}

func (g *Gateway) analyzeOutfit(ctx context.Context, op *Operation) (any, error) {
	if op.ImageData == "" {
		return nil, fmt.Errorf("%w: ANALYZE_OUTFIT requires imageData", ErrValidation)
	}
	subject := cache.Key(op.ImageData, "subject-outfit")
	return g.runAnalysis(ctx, op, analysis.TypeOutfit, subject, func(ctx context.Context) (any, error) {
		return g.basicScores(ctx, op.ImageData)
	})
}

func (g *Gateway) analyzeDetails(ctx context.Context, op *Operation) (any, error) {
	if op.ImageData == "" {
		return nil, fmt.Errorf("%w: ANALYZE_DETAILS requires imageData", ErrValidation)
	}
	subject := cache.Key(op.ImageData, "subject-detailed")
	return g.runAnalysis(ctx, op, analysis.TypeDetailed, subject, func(ctx context.Context) (any, error) {
		key := cache.Key(op.ImageData, "detailed-analysis")
		if v, ok := g.cache.Get(key); ok {
			log.Debug().Msg("Using cached detailed analysis")
			return v.(*analysis.Details), nil
		}
		// The basic-score call completes before the itemized call is
		// issued; both complete before the record is persisted.
		basic, err := g.basicScores(ctx, op.ImageData)
		if err != nil {
			return nil, err
		}
		details, err := g.vision.AnalyzeDetails(ctx, op.ImageData, basic)
		if err != nil {
			return nil, err
		}
		g.cache.Set(key, details)
		return details, nil
	})
}

func (g *Gateway) matchOccasion(ctx context.Context, op *Operation) (any, error) {
	if op.ImageData == "" || op.Occasion == "" {
		return nil, fmt.Errorf("%w: MATCH_OCCASION requires imageData and occasion", ErrValidation)
	}
	subject := cache.Key(op.ImageData, map[string]string{"subject-occasion": op.Occasion})
	return g.runAnalysis(ctx, op, analysis.TypeOccasion, subject, func(ctx context.Context) (any, error) {
		key := cache.Key(op.ImageData, map[string]string{"occasion": op.Occasion})
		if v, ok := g.cache.Get(key); ok {
			log.Debug().Msg("Using cached occasion match")
			return v.(*analysis.OccasionMatch), nil
		}
		scores, err := g.basicScores(ctx, op.ImageData)
		if err != nil {
			return nil, err
		}
		match := &analysis.OccasionMatch{
			Occasion: op.Occasion,
			Score:    occasion.Score(scores.StyleAttributes, scores.Comfort, scores.FitConfidence, op.Occasion),
		}
		g.cache.Set(key, match)
		return match, nil
	})
}

func (g *Gateway) getSuggestions(ctx context.Context, op *Operation) (any, error) {
	if op.ImageData == "" || op.Occasion == "" {
		return nil, fmt.Errorf("%w: GET_SUGGESTIONS requires imageData and occasion", ErrValidation)
	}
	subject := cache.Key(op.ImageData, map[string]string{"subject-suggestion": op.Occasion})
	return g.runAnalysis(ctx, op, analysis.TypeSuggestion, subject, func(ctx context.Context) (any, error) {
		key := cache.Key(op.ImageData, map[string]string{"suggestion": op.Occasion})
		if v, ok := g.cache.Get(key); ok {
			log.Debug().Msg("Using cached style suggestions")
			return v.(*analysis.Suggestions), nil
		}
		list, err := g.vision.StyleSuggestions(ctx, op.ImageData, op.Occasion)
		if err != nil {
			return nil, err
		}
		sug := &analysis.Suggestions{Occasion: op.Occasion, Suggestions: list}
		g.cache.Set(key, sug)
		return sug, nil
	})
}

// --- Record query operations ---

func (g *Gateway) storeAnalysis(op *Operation) (any, error) {
	if op.Analysis == nil {
		return nil, fmt.Errorf("%w: STORE_ANALYSIS requires analysis", ErrValidation)
	}
	rec := op.Analysis
	if rec.ID == "" {
		rec.ID = analysis.NewID()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = g.now().UnixMilli()
	}
	rec.QueryTags = analysis.DeriveQueryTags(rec)
	if err := g.store.SaveAnalysis(rec); err != nil {
		return nil, g.fail(op.Type, "failed to store analysis", err)
	}
	return rec, nil
}

func (g *Gateway) fetchAnalyses(op *Operation) (any, error) {
	records, err := g.store.ListAnalyses()
	if err != nil {
		return nil, g.fail(op.Type, "failed to fetch analyses", err)
	}
	return analysis.Apply(records, op.Filters), nil
}

func (g *Gateway) getAnalysis(op *Operation) (any, error) {
	if op.ID == "" {
		return nil, fmt.Errorf("%w: GET_ANALYSIS requires id", ErrValidation)
	}
	rec, err := g.store.GetAnalysis(op.ID)
	if err != nil {
		return nil, g.fail(op.Type, "failed to get analysis", err)
	}
	if rec == nil {
		return nil, nil // missing, not broken
	}
	return rec, nil
}

func (g *Gateway) deleteAnalysis(op *Operation) (any, error) {
	if op.ID == "" {
		return nil, fmt.Errorf("%w: DELETE_ANALYSIS requires id", ErrValidation)
	}
	if err := g.store.DeleteAnalysis(op.ID); err != nil {
		return nil, g.fail(op.Type, "failed to delete analysis", err)
	}
	return &SuccessResult{Success: true}, nil
}

func (g *Gateway) clearAnalyses(op *Operation) (any, error) {
	if err := g.store.ClearAnalyses(); err != nil {
		return nil, g.fail(op.Type, "failed to clear analyses", err)
	}
	return &SuccessResult{Success: true}, nil
}

func (g *Gateway) searchAnalyses(op *Operation) (any, error) {
	if op.Query == "" {
		return nil, fmt.Errorf("%w: SEARCH_ANALYSES requires query", ErrValidation)
	}
	records, err := g.store.ListAnalyses()
	if err != nil {
		return nil, g.fail(op.Type, "failed to search analyses", err)
	}
	matched := analysis.Search(records, op.Query)
	return analysis.Apply(matched, nil), nil
}

func (g *Gateway) getStats(op *Operation) (any, error) {
	records, err := g.store.ListAnalyses()
	if err != nil {
		return nil, g.fail(op.Type, "failed to compute stats", err)
	}
	return analysis.ComputeStats(records), nil
}

// --- Feedback operations ---

func (g *Gateway) saveFeedback(op *Operation) (any, error) {
	if op.ImageID == "" || op.AnalysisID == "" {
		return nil, fmt.Errorf("%w: SAVE_FEEDBACK requires imageId and analysisId", ErrValidation)
	}
	if !analysis.ValidVote(op.Feedback) {
		return nil, fmt.Errorf("%w: SAVE_FEEDBACK requires feedback of upvote or downvote", ErrValidation)
	}
	fb := &analysis.Feedback{
		ImageID:    op.ImageID,
		AnalysisID: op.AnalysisID,
		Feedback:   op.Feedback,
		Timestamp:  g.now().UnixMilli(),
	}
	if err := g.store.SaveFeedback(fb); err != nil {
		return nil, g.fail(op.Type, "failed to save feedback", err)
	}
	return &SuccessResult{Success: true}, nil
}

func (g *Gateway) removeFeedback(op *Operation) (any, error) {
	if op.AnalysisID == "" {
		return nil, fmt.Errorf("%w: REMOVE_FEEDBACK requires analysisId", ErrValidation)
	}
	if err := g.store.RemoveFeedback(op.AnalysisID); err != nil {
		return nil, g.fail(op.Type, "failed to remove feedback", err)
	}
	return &SuccessResult{Success: true}, nil
}

func (g *Gateway) getFeedback(op *Operation) (any, error) {
	feedback, err := g.store.ListFeedback()
	if err != nil {
		return nil, g.fail(op.Type, "failed to list feedback", err)
	}
	return feedback, nil
}

func (g *Gateway) clearFeedback(op *Operation) (any, error) {
	if err := g.store.ClearFeedback(); err != nil {
		return nil, g.fail(op.Type, "failed to clear feedback", err)
	}
	return &SuccessResult{Success: true}, nil
}
