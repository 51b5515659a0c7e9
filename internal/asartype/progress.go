package asartype

// ProgressEvent represents a progress update during archive creation or extraction.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the inner path currently being processed, if applicable.
	Path string

	// BytesDone is the number of bytes completed in the current operation.
	BytesDone uint64

	// BytesTotal is the total bytes for the current operation.
	// Zero indicates the total is unknown.
	BytesTotal uint64

	// FilesDone is the number of files completed.
	FilesDone int

	// FilesTotal is the total number of files.
	// Zero indicates the total is unknown (e.g., during enumeration).
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for creation and extraction.
const (
	// StageEnumerating indicates the source tree is being walked.
	StageEnumerating ProgressStage = iota

	// StageHashing indicates file content is being hashed for integrity records.
	StageHashing

	// StageWriting indicates file content is being written into the data region.
	StageWriting

	// StageUnpacking indicates files are being copied to the unpacked directory.
	StageUnpacking

	// StageExtracting indicates files are being extracted.
	StageExtracting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageHashing:
		return "hashing"
	case StageWriting:
		return "writing"
	case StageUnpacking:
		return "unpacking"
	case StageExtracting:
		return "extracting"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
