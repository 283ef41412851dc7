// Package blob assigns persistent identities to the per-frame touch blobs
// produced by contour extraction.
//
// Responsibilities: candidate list construction, greedy nearest-first
// assignment with cascading reassignment, entity lifecycle (birth,
// continuation, grace-period survival, death), kinematic smoothing and the
// calibrated output map read by downstream consumers.
// Key types: Detection, TrackedEntity, CandidateLink, Tracker, OutputRecord.
//
// The package never touches pixels and never encodes results for the
// network. Screen-space conversion is delegated to a Transformer.
package blob
