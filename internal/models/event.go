package models

// Interpretation stages, in the order a request moves through them.
const (
	StageDownloading = "downloading"
	StageUploading   = "uploading"
	StageAnalyzing   = "analyzing"
	StageComplete    = "complete"
)

// StreamEvent is one frame on the interpretation event stream. Exactly one
// field is set: a stage marker, a text delta, or a terminal error.
type StreamEvent struct {
	Status string `json:"status,omitempty"`
	Chunk  string `json:"chunk,omitempty"`
	Error  string `json:"error,omitempty"`
}
