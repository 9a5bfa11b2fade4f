package domain

import (
	"fmt"
	"math"
	"time"
)

// SegmentRuleVersion tags the current segmentation rule revision. Bump on
// any threshold or cut-point change to support reproducibility audits.
const SegmentRuleVersion = "1.0.0"

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Pipeline holds the analytical defaults applied when a run request
	// does not override them.
	Pipeline PipelineConfig `json:"pipeline"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// PipelineConfig is the explicit configuration object threaded through every
// pipeline stage. Never ambient or global: runs with different parameters
// can execute concurrently without interference.
type PipelineConfig struct {
	// SnapshotDate is the as-of date for the run. Zero means "latest
	// transaction date in the set".
	SnapshotDate time.Time `json:"snapshotDate"`

	// WindowDays is the trailing window length for frequency/monetary and
	// for trend comparison.
	WindowDays int `json:"windowDays"`

	// Weights for the risk signal aggregation. Must sum to 1.0.
	Weights SignalWeights `json:"weights"`

	// RecencySaturationDays is the recency at which the recency signal
	// saturates to 1.0.
	RecencySaturationDays int `json:"recencySaturationDays"`

	// TrendDropFloor is the magnitude of negative trend at which the drop
	// signals saturate to 1.0 (0.5 means a 50% decline is maximum risk).
	TrendDropFloor float64 `json:"trendDropFloor"`

	// Lifecycle thresholds in recency days, inclusive upper bounds.
	ActiveMaxDays  int `json:"activeMaxDays"`
	AtRiskMaxDays  int `json:"atRiskMaxDays"`
	DormantMaxDays int `json:"dormantMaxDays"`

	// Value segment percentile cuts, inclusive lower bounds.
	HighValuePercentile   float64 `json:"highValuePercentile"`
	MediumValuePercentile float64 `json:"mediumValuePercentile"`

	// Decision rule table. Evaluated in order; FallbackAction applies when
	// no rule matches.
	Rules            []DecisionRule `json:"rules"`
	FallbackAction   string         `json:"fallbackAction"`
	FallbackPriority string         `json:"fallbackPriority"`

	// ActionCosts is the fixed heuristic cost per action type.
	ActionCosts map[string]float64 `json:"actionCosts"`

	// RecoveryRates is the assumed fraction of lifetime value recoverable
	// per action type.
	RecoveryRates map[string]float64 `json:"recoveryRates"`

	// SegmentVersion tags the segmentation rule revision for this run.
	SegmentVersion string `json:"segmentVersion"`
}

// SignalWeights are the fixed risk aggregation weights. Changing them is a
// rule-version change, not a runtime tweak.
type SignalWeights struct {
	Recency       float64 `json:"recency"`
	FrequencyDrop float64 `json:"frequencyDrop"`
	SpendDrop     float64 `json:"spendDrop"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// DefaultPipelineConfig returns the default analytical parameters and the
// default decision rule table.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		WindowDays: 90,
		Weights: SignalWeights{
			Recency:       0.40,
			FrequencyDrop: 0.25,
			SpendDrop:     0.35,
		},
		RecencySaturationDays: 180,
		TrendDropFloor:        0.5,
		ActiveMaxDays:         30,
		AtRiskMaxDays:         90,
		DormantMaxDays:        180,
		HighValuePercentile:   80,
		MediumValuePercentile: 40,
		Rules:                 DefaultDecisionRules(),
		FallbackAction:        ActionMonitor,
		FallbackPriority:      PriorityLow,
		ActionCosts:           DefaultActionCosts(),
		RecoveryRates:         DefaultRecoveryRates(),
		SegmentVersion:        SegmentRuleVersion,
	}
}

// Validate checks the pipeline configuration, failing fast with
// ErrInvalidConfiguration rather than producing a silently skewed run.
func (c PipelineConfig) Validate() error {
	if c.WindowDays <= 0 {
		return fmt.Errorf("%w: window days must be positive, got %d", ErrInvalidConfiguration, c.WindowDays)
	}

	sum := c.Weights.Recency + c.Weights.FrequencyDrop + c.Weights.SpendDrop
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("%w: signal weights must sum to 1.0, got %.6f", ErrInvalidConfiguration, sum)
	}
	if c.Weights.Recency < 0 || c.Weights.FrequencyDrop < 0 || c.Weights.SpendDrop < 0 {
		return fmt.Errorf("%w: signal weights must be non-negative", ErrInvalidConfiguration)
	}

	if c.RecencySaturationDays <= 0 {
		return fmt.Errorf("%w: recency saturation must be positive, got %d", ErrInvalidConfiguration, c.RecencySaturationDays)
	}
	if c.TrendDropFloor <= 0 {
		return fmt.Errorf("%w: trend drop floor must be positive, got %.2f", ErrInvalidConfiguration, c.TrendDropFloor)
	}

	if c.ActiveMaxDays < 0 || c.ActiveMaxDays >= c.AtRiskMaxDays || c.AtRiskMaxDays >= c.DormantMaxDays {
		return fmt.Errorf("%w: lifecycle thresholds must be ordered and non-negative: %d/%d/%d",
			ErrInvalidConfiguration, c.ActiveMaxDays, c.AtRiskMaxDays, c.DormantMaxDays)
	}

	if c.HighValuePercentile <= c.MediumValuePercentile ||
		c.MediumValuePercentile <= 0 || c.HighValuePercentile > 100 {
		return fmt.Errorf("%w: percentile cuts must satisfy 0 < medium < high <= 100, got %.1f/%.1f",
			ErrInvalidConfiguration, c.HighValuePercentile, c.MediumValuePercentile)
	}

	if c.FallbackAction == "" {
		return fmt.Errorf("%w: fallback action is required", ErrInvalidConfiguration)
	}
	return nil
}

// WithSnapshot returns a copy of the configuration with the snapshot date
// set. The receiver is not modified.
func (c PipelineConfig) WithSnapshot(snapshot time.Time) PipelineConfig {
	c.SnapshotDate = snapshot.UTC()
	return c
}

// DefaultConfig returns a default configuration: SQLite repository,
// in-memory cache, channel event bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Pipeline: DefaultPipelineConfig(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 1000,
			LocalTTL:     30 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}
