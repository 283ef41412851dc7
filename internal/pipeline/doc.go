// Package pipeline drives the tracker at the camera frame rate.
//
// It pulls one detection frame per tick from a Source, hands it to the
// tracker and fans the resulting frame summary out to sinks (persistence,
// recording, monitors). The pipeline owns no tracking logic.
package pipeline
