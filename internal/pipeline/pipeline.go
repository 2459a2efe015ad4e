// Package pipeline orchestrates batch scoring: schema validation,
// feature transformation, model inference, thresholding and persistence.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-telco/shrike/internal/decision"
	"github.com/opensource-telco/shrike/internal/domain"
	"github.com/opensource-telco/shrike/internal/model"
	"github.com/opensource-telco/shrike/internal/schema"
	"github.com/opensource-telco/shrike/internal/transform"
)

const (
	// resultCacheTTL bounds how long a scored batch stays in cache.
	// Results are immutable, so staleness is not a concern.
	resultCacheTTL = time.Hour

	// maxScoreWorkers limits concurrent row scoring per batch.
	maxScoreWorkers = 8
)

// Scorer runs subscriber batches through the scoring pipeline.
type Scorer struct {
	fitted *transform.Fitted
	net    *model.Network
	store  domain.ResultStore
	cache  domain.Cache
	bus    domain.EventBus
}

// New creates a scorer from a fitted transform and an inference network.
// The transform's output dimension must match the network's input layer.
func New(fitted *transform.Fitted, net *model.Network, store domain.ResultStore, cache domain.Cache, bus domain.EventBus) (*Scorer, error) {
	if fitted == nil || net == nil {
		return nil, &domain.ConfigError{Reason: "fitted transform and network are required"}
	}
	if err := fitted.Validate(); err != nil {
		return nil, err
	}
	if fitted.Dim() != net.InputDim() {
		return nil, &domain.ConfigError{
			Reason: fmt.Sprintf("transform produces %d features but network expects %d", fitted.Dim(), net.InputDim()),
		}
	}
	if store == nil {
		return nil, &domain.ConfigError{Reason: "result store is required"}
	}

	return &Scorer{
		fitted: fitted,
		net:    net,
		store:  store,
		cache:  cache,
		bus:    bus,
	}, nil
}

// ScoreBatch validates, scores and persists a batch. The returned result
// preserves input row order. Validation failures surface as SchemaError
// before any row is scored.
func (s *Scorer) ScoreBatch(ctx context.Context, batch *domain.Batch) (*domain.Result, error) {
	start := time.Now()

	if err := schema.Validate(batch); err != nil {
		return nil, err
	}

	records, err := schema.Decode(batch)
	if err != nil {
		return nil, err
	}

	predictions := make([]domain.Prediction, len(records))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxScoreWorkers)
	errs := make([]error, len(records))

	for i := range records {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			predictions[idx], errs[idx] = s.scoreRecord(&records[idx])
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	result := &domain.Result{
		ID:          uuid.New().String(),
		Summary:     decision.Summarize(predictions),
		Predictions: predictions,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.SaveResult(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save result: %w", err)
	}

	s.cacheResult(ctx, result)
	s.publishScored(ctx, result)

	slog.Info("batch scored",
		"result_id", result.ID,
		"rows", result.Summary.Total,
		"predicted_frauds", result.Summary.PredictedFrauds,
		"avg_prob", result.Summary.AvgProb,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// SubmitBatch validates a batch and queues it for async scoring.
func (s *Scorer) SubmitBatch(ctx context.Context, batch *domain.Batch) error {
	if s.bus == nil {
		return &domain.ConfigError{Reason: "event bus not configured for async scoring"}
	}

	if err := schema.Validate(batch); err != nil {
		return err
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	return s.bus.Publish(ctx, domain.TopicBatchSubmitted, payload)
}

// GetResult returns a stored result by ID, consulting the cache first.
func (s *Scorer) GetResult(ctx context.Context, id string) (*domain.Result, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, resultCacheKey(id)); err == nil && data != nil {
			var result domain.Result
			if err := json.Unmarshal(data, &result); err == nil {
				return &result, nil
			}
		}
	}

	result, err := s.store.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheResult(ctx, result)
	return result, nil
}

// ListResults returns stored result summaries, most recent first.
func (s *Scorer) ListResults(ctx context.Context) ([]*domain.ResultSummary, error) {
	return s.store.ListResults(ctx)
}

// PurgeResult deletes a result from the store and cache.
func (s *Scorer) PurgeResult(ctx context.Context, id string) error {
	if err := s.store.PurgeResult(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, resultCacheKey(id))
	}
	return nil
}

// scoreRecord transforms and scores a single record.
func (s *Scorer) scoreRecord(rec *domain.Record) (domain.Prediction, error) {
	vec := s.fitted.Apply(rec)

	prob, err := s.net.Infer(vec)
	if err != nil {
		return domain.Prediction{}, err
	}

	predicted, class := decision.Classify(prob)

	return domain.Prediction{
		SubscriberID:     rec.SubscriberID,
		FraudProbability: prob,
		PredictedFraud:   predicted,
		Classification:   class,
		Fields:           rec.Fields,
	}, nil
}

func (s *Scorer) cacheResult(ctx context.Context, result *domain.Result) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, resultCacheKey(result.ID), data, resultCacheTTL); err != nil {
		slog.Warn("failed to cache result",
			"result_id", result.ID,
			"error", err,
		)
	}
}

// publishScored emits the batch summary, plus one alert per high-band
// prediction for downstream consumers.
func (s *Scorer) publishScored(ctx context.Context, result *domain.Result) {
	if s.bus == nil {
		return
	}

	summary, _ := json.Marshal(domain.ResultSummary{
		ID:        result.ID,
		Summary:   result.Summary,
		CreatedAt: result.CreatedAt,
	})
	if err := s.bus.Publish(ctx, domain.TopicBatchScored, summary); err != nil {
		slog.Warn("failed to publish scored event",
			"result_id", result.ID,
			"error", err,
		)
	}

	for i := range result.Predictions {
		p := &result.Predictions[i]
		if decision.Band(p.FraudProbability) != domain.BandHigh {
			continue
		}
		alert, _ := json.Marshal(map[string]any{
			"result_id":         result.ID,
			"subscriber_id":     p.SubscriberID,
			"fraud_probability": p.FraudProbability,
		})
		if err := s.bus.Publish(ctx, domain.TopicAlert, alert); err != nil {
			slog.Warn("failed to publish alert",
				"result_id", result.ID,
				"subscriber_id", p.SubscriberID,
				"error", err,
			)
		}
	}
}

func resultCacheKey(id string) string {
	return "result:" + id
}
