package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Fallback values used when a field is absent from the loaded JSON.
const (
	defaultCameraWidth           = 320.0
	defaultCameraHeight          = 240.0
	defaultCandidateGateFraction = 0.2
	defaultMaxCandidates         = 6
	defaultGraceFrames           = 11
	defaultMovementFilter        = 0.0
	defaultSittingAccelThreshold = 7.0
	defaultHeldAfter             = time.Second
	defaultAreaAverageInterval   = 500 * time.Millisecond
	defaultMinMovementThreshold  = 0.0
	defaultFrameRate             = 60.0
	defaultMaxEntities           = 0
)

// TuningConfig represents the root configuration for tracker tuning,
// loaded from a flat JSON object such as config/tuning.defaults.json.
type TuningConfig struct {
	// Camera geometry
	CameraWidth  *float64 `json:"camera_width,omitempty"`
	CameraHeight *float64 `json:"camera_height,omitempty"`

	// Candidate search
	CandidateGateFraction *float64 `json:"candidate_gate_fraction,omitempty"`
	MaxCandidates         *int     `json:"max_candidates,omitempty"`

	// Lifecycle
	GraceFrames *int `json:"grace_frames,omitempty"`
	MaxEntities *int `json:"max_entities,omitempty"`

	// Kinematics
	MovementFilter        *float64 `json:"movement_filter,omitempty"`
	SittingAccelThreshold *float64 `json:"sitting_accel_threshold,omitempty"`
	HeldAfter             *string  `json:"held_after,omitempty"`            // duration string like "1s"
	AreaAverageInterval   *string  `json:"area_average_interval,omitempty"` // duration string like "500ms"
	MinMovementThreshold  *float64 `json:"min_movement_threshold,omitempty"`

	// Driver
	FrameRate *float64 `json:"frame_rate,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in fallbacks.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		CameraWidth:           ptrFloat64(defaultCameraWidth),
		CameraHeight:          ptrFloat64(defaultCameraHeight),
		CandidateGateFraction: ptrFloat64(defaultCandidateGateFraction),
		MaxCandidates:         ptrInt(defaultMaxCandidates),
		GraceFrames:           ptrInt(defaultGraceFrames),
		MaxEntities:           ptrInt(defaultMaxEntities),
		MovementFilter:        ptrFloat64(defaultMovementFilter),
		SittingAccelThreshold: ptrFloat64(defaultSittingAccelThreshold),
		HeldAfter:             ptrString(defaultHeldAfter.String()),
		AreaAverageInterval:   ptrString(defaultAreaAverageInterval.String()),
		MinMovementThreshold:  ptrFloat64(defaultMinMovementThreshold),
		FrameRate:             ptrFloat64(defaultFrameRate),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// The Get* methods provide fallback defaults for any fields not
	// specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.CameraWidth != nil && *c.CameraWidth <= 0 {
		return fmt.Errorf("camera_width must be positive, got %f", *c.CameraWidth)
	}
	if c.CameraHeight != nil && *c.CameraHeight <= 0 {
		return fmt.Errorf("camera_height must be positive, got %f", *c.CameraHeight)
	}
	if c.CandidateGateFraction != nil {
		if *c.CandidateGateFraction <= 0 || *c.CandidateGateFraction > 1 {
			return fmt.Errorf("candidate_gate_fraction must be in (0, 1], got %f", *c.CandidateGateFraction)
		}
	}
	if c.MaxCandidates != nil && *c.MaxCandidates < 1 {
		return fmt.Errorf("max_candidates must be at least 1, got %d", *c.MaxCandidates)
	}
	if c.GraceFrames != nil && *c.GraceFrames < 1 {
		return fmt.Errorf("grace_frames must be at least 1, got %d", *c.GraceFrames)
	}
	if c.MaxEntities != nil && *c.MaxEntities < 0 {
		return fmt.Errorf("max_entities must be non-negative, got %d", *c.MaxEntities)
	}
	if c.MovementFilter != nil {
		if *c.MovementFilter < 0 || *c.MovementFilter > 15 {
			return fmt.Errorf("movement_filter must be between 0 and 15, got %f", *c.MovementFilter)
		}
	}
	if c.SittingAccelThreshold != nil && *c.SittingAccelThreshold < 0 {
		return fmt.Errorf("sitting_accel_threshold must be non-negative, got %f", *c.SittingAccelThreshold)
	}
	if c.MinMovementThreshold != nil && *c.MinMovementThreshold < 0 {
		return fmt.Errorf("min_movement_threshold must be non-negative, got %f", *c.MinMovementThreshold)
	}
	if c.HeldAfter != nil && *c.HeldAfter != "" {
		if d, err := time.ParseDuration(*c.HeldAfter); err != nil {
			return fmt.Errorf("invalid held_after '%s': %w", *c.HeldAfter, err)
		} else if d <= 0 {
			return fmt.Errorf("held_after must be positive, got %s", d)
		}
	}
	if c.AreaAverageInterval != nil && *c.AreaAverageInterval != "" {
		if d, err := time.ParseDuration(*c.AreaAverageInterval); err != nil {
			return fmt.Errorf("invalid area_average_interval '%s': %w", *c.AreaAverageInterval, err)
		} else if d <= 0 {
			return fmt.Errorf("area_average_interval must be positive, got %s", d)
		}
	}
	if c.FrameRate != nil {
		if *c.FrameRate < 1 || *c.FrameRate > 500 {
			return fmt.Errorf("frame_rate must be between 1 and 500, got %f", *c.FrameRate)
		}
	}

	return nil
}

// parseDurationOr parses s, returning def when s is unset or malformed.
func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetCameraWidth returns the camera_width value or the default.
func (c *TuningConfig) GetCameraWidth() float64 {
	if c.CameraWidth == nil {
		return defaultCameraWidth
	}
	return *c.CameraWidth
}

// GetCameraHeight returns the camera_height value or the default.
func (c *TuningConfig) GetCameraHeight() float64 {
	if c.CameraHeight == nil {
		return defaultCameraHeight
	}
	return *c.CameraHeight
}

// GetCandidateGateFraction returns the candidate_gate_fraction value or the default.
func (c *TuningConfig) GetCandidateGateFraction() float64 {
	if c.CandidateGateFraction == nil {
		return defaultCandidateGateFraction
	}
	return *c.CandidateGateFraction
}

// GetMaxCandidates returns the max_candidates value or the default.
func (c *TuningConfig) GetMaxCandidates() int {
	if c.MaxCandidates == nil {
		return defaultMaxCandidates
	}
	return *c.MaxCandidates
}

// GetGraceFrames returns the grace_frames value or the default.
func (c *TuningConfig) GetGraceFrames() int {
	if c.GraceFrames == nil {
		return defaultGraceFrames
	}
	return *c.GraceFrames
}

// GetMaxEntities returns the max_entities value or the default.
func (c *TuningConfig) GetMaxEntities() int {
	if c.MaxEntities == nil {
		return defaultMaxEntities
	}
	return *c.MaxEntities
}

// GetMovementFilter returns the movement_filter value or the default.
func (c *TuningConfig) GetMovementFilter() float64 {
	if c.MovementFilter == nil {
		return defaultMovementFilter
	}
	return *c.MovementFilter
}

// GetSittingAccelThreshold returns the sitting_accel_threshold value or the default.
func (c *TuningConfig) GetSittingAccelThreshold() float64 {
	if c.SittingAccelThreshold == nil {
		return defaultSittingAccelThreshold
	}
	return *c.SittingAccelThreshold
}

// GetHeldAfter parses and returns HeldAfter as a time.Duration.
func (c *TuningConfig) GetHeldAfter() time.Duration {
	return parseDurationOr(c.HeldAfter, defaultHeldAfter)
}

// GetAreaAverageInterval parses and returns AreaAverageInterval as a time.Duration.
func (c *TuningConfig) GetAreaAverageInterval() time.Duration {
	return parseDurationOr(c.AreaAverageInterval, defaultAreaAverageInterval)
}

// GetMinMovementThreshold returns the min_movement_threshold value or the default.
func (c *TuningConfig) GetMinMovementThreshold() float64 {
	if c.MinMovementThreshold == nil {
		return defaultMinMovementThreshold
	}
	return *c.MinMovementThreshold
}

// GetFrameRate returns the frame_rate value or the default.
func (c *TuningConfig) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return defaultFrameRate
	}
	return *c.FrameRate
}

// FramePeriod returns the driver period derived from the frame rate.
func (c *TuningConfig) FramePeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.GetFrameRate())
}
