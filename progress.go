package asar

import "github.com/meigma/asar/internal/asartype"

// Re-export progress types from internal/asartype.
type (
	// ProgressEvent represents a progress update during Create or Extract.
	ProgressEvent = asartype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = asartype.ProgressStage

	// ProgressFunc receives progress updates during operations.
	// Implementations must be safe for concurrent calls.
	ProgressFunc = asartype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageEnumerating indicates the source tree is being walked.
	StageEnumerating = asartype.StageEnumerating

	// StageHashing indicates file content is being hashed.
	StageHashing = asartype.StageHashing

	// StageWriting indicates file content is being written into the archive.
	StageWriting = asartype.StageWriting

	// StageUnpacking indicates files are being copied beside the archive.
	StageUnpacking = asartype.StageUnpacking

	// StageExtracting indicates files are being extracted.
	StageExtracting = asartype.StageExtracting
)
