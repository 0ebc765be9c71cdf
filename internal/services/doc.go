// Package services defines the shared error taxonomy and context carriers
// used across the bulletin pipeline. Per-source and per-segment failures are
// tagged with sentinel markers so the orchestrator can classify them without
// string matching, and run/source/stage identifiers travel through context
// for structured logging.
package services
