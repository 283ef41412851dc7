package blob

import (
	"time"

	"github.com/banshee-data/touchtrack/internal/config"
)

// TrackerConfig holds the tuning parameters for the tracker.
type TrackerConfig struct {
	CameraWidth           float64       // Candidate gate basis (pixels)
	CandidateGateFraction float64       // Fraction of CameraWidth allowed between frames
	MaxCandidates         int           // K: candidate list cap per entity
	GraceFrames           int           // Consecutive unmatched frames survived before deletion
	MovementFilter        float64       // Smoothing level in [0, 15]; 0 disables filtering
	SittingAccelThreshold float64       // Acceleration below which an entity is considered still
	HeldAfter             time.Duration // Stillness before the one-shot held event
	AreaAverageInterval   time.Duration // Area reporting window
	MinMovementThreshold  float64       // Acceleration below which the centroid is pinned; 0 disables
	MaxEntities           int           // Live entity cap; 0 means unlimited
}

// MaxDistanceSquared returns the squared candidate gate distance.
func (c TrackerConfig) MaxDistanceSquared() float64 {
	d := c.CameraWidth * c.CandidateGateFraction
	return d * d
}

// DefaultTrackerConfig returns tracker configuration loaded from the
// canonical tuning defaults file (config/tuning.defaults.json).
// Panics if the file cannot be found; intended for tests and binaries
// that have already validated config availability.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfigFromTuning(config.MustLoadDefaultConfig())
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		CameraWidth:           cfg.GetCameraWidth(),
		CandidateGateFraction: cfg.GetCandidateGateFraction(),
		MaxCandidates:         cfg.GetMaxCandidates(),
		GraceFrames:           cfg.GetGraceFrames(),
		MovementFilter:        cfg.GetMovementFilter(),
		SittingAccelThreshold: cfg.GetSittingAccelThreshold(),
		HeldAfter:             cfg.GetHeldAfter(),
		AreaAverageInterval:   cfg.GetAreaAverageInterval(),
		MinMovementThreshold:  cfg.GetMinMovementThreshold(),
		MaxEntities:           cfg.GetMaxEntities(),
	}
}
