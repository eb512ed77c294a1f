package leads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vantage-crm/vantage-crm/internal/platform/cache"
	"github.com/vantage-crm/vantage-crm/internal/shared"
)

// PipelineConfig is the sales pipeline definition: the ordered stages, the
// accepted lead sources and the stage to win-probability table. It is passed
// in explicitly wherever stage validation or probability derivation happens;
// there is no ambient settings lookup.
type PipelineConfig struct {
	Stages           []string       `json:"stages"`
	Sources          []string       `json:"sources"`
	StageProbability map[string]int `json:"stage_probability"`
}

// DefaultPipeline is the documented default table.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		Stages: []string{
			StageNew, StageContacted, StageQualified, StageProposalSent,
			StageNegotiation, StageWon, StageLost,
		},
		Sources: []string{
			"Website", "Referral", "Cold Call", "Exhibition", "Social Media", "Other",
		},
		StageProbability: map[string]int{
			StageNew:          10,
			StageContacted:    25,
			StageQualified:    50,
			StageProposalSent: 65,
			StageNegotiation:  80,
			StageWon:          100,
			StageLost:         0,
		},
	}
}

// ValidateStage rejects stages outside the pipeline.
func (p PipelineConfig) ValidateStage(stage string) error {
	for _, s := range p.Stages {
		if s == stage {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown pipeline stage %q", shared.ErrValidation, stage)
}

// ValidateSource rejects sources outside the configured list.
func (p PipelineConfig) ValidateSource(source string) error {
	for _, s := range p.Sources {
		if s == source {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown lead source %q", shared.ErrValidation, source)
}

// ProbabilityFor returns the win probability for a stage, 0 when unmapped.
func (p PipelineConfig) ProbabilityFor(stage string) int {
	return p.StageProbability[stage]
}

// PipelineProvider yields the pipeline currently in force.
type PipelineProvider interface {
	Pipeline(ctx context.Context) (PipelineConfig, error)
}

// StaticPipeline serves a fixed configuration.
type StaticPipeline struct {
	config PipelineConfig
}

// NewStaticPipeline wraps a fixed config; zero-value configs fall back to
// the defaults.
func NewStaticPipeline(config PipelineConfig) *StaticPipeline {
	if len(config.Stages) == 0 {
		config = DefaultPipeline()
	}
	return &StaticPipeline{config: config}
}

func (s *StaticPipeline) Pipeline(context.Context) (PipelineConfig, error) {
	return s.config, nil
}

const pipelineCacheKey = "crm:pipeline"

// CachedPipeline layers the redis JSON cache over another provider. Cache
// failures degrade to the inner provider, never to an error.
type CachedPipeline struct {
	inner  PipelineProvider
	cache  *cache.JSONCache
	logger *slog.Logger
}

// NewCachedPipeline builds the caching layer.
func NewCachedPipeline(inner PipelineProvider, c *cache.JSONCache, logger *slog.Logger) *CachedPipeline {
	return &CachedPipeline{inner: inner, cache: c, logger: logger}
}

func (c *CachedPipeline) Pipeline(ctx context.Context) (PipelineConfig, error) {
	var config PipelineConfig
	err := c.cache.Get(ctx, pipelineCacheKey, &config)
	if err == nil {
		return config, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn("pipeline cache read", slog.Any("error", err))
	}

	config, err = c.inner.Pipeline(ctx)
	if err != nil {
		return PipelineConfig{}, err
	}
	if err := c.cache.Set(ctx, pipelineCacheKey, config); err != nil {
		c.logger.Warn("pipeline cache write", slog.Any("error", err))
	}
	return config, nil
}
