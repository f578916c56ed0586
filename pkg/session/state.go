// Package session holds the view state of one detection session as a single
// value, changed only through Reduce.
//
// A session is either working on a user-selected file or streaming a
// camera, never both. Entering one workflow discards the other's state.
package session

import (
	"encoding/json"
	"fmt"

	"github.com/teslashibe/go-detect/pkg/detection"
)

// Phase is the UI phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseUploading
	PhaseProcessing
	PhaseCameraStreaming
)

var phaseNames = map[Phase]string{
	PhaseIdle:            "idle",
	PhaseUploading:       "uploading",
	PhaseProcessing:      "processing",
	PhaseCameraStreaming: "camera_streaming",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalJSON encodes the phase name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Busy reports whether a static-image request is outstanding.
func (p Phase) Busy() bool {
	return p == PhaseUploading || p == PhaseProcessing
}

// InputKind is what the session is analyzing.
type InputKind int

const (
	InputNone InputKind = iota
	InputFile
	InputCameraFrame
)

var inputNames = map[InputKind]string{
	InputNone:        "none",
	InputFile:        "file",
	InputCameraFrame: "camera_frame",
}

func (k InputKind) String() string {
	if s, ok := inputNames[k]; ok {
		return s
	}
	return fmt.Sprintf("input(%d)", int(k))
}

// MarshalJSON encodes the input kind name.
func (k InputKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// FileRef describes the selected file. The bytes live with the controller.
type FileRef struct {
	Name        string `json:"name"`
	Size        int    `json:"size"`
	ContentType string `json:"content_type"`
}

// State is the complete view state. The zero value is the initial state.
type State struct {
	Input InputKind `json:"input"`
	File  *FileRef  `json:"file,omitempty"`

	// OriginalImage references the selected file for display.
	OriginalImage string `json:"original_image,omitempty"`

	// ProcessedImageURL is the backend's annotated image.
	ProcessedImageURL string `json:"processed_image_url,omitempty"`

	Batch         detection.Batch `json:"batch"`
	NumberOfBoxes int             `json:"number_of_boxes"`
	Summary       string          `json:"summary"`

	Phase    Phase `json:"phase"`
	Progress int   `json:"progress"`

	// LastError is the most recent failure. Results are left as they were.
	LastError *detection.Failure `json:"last_error,omitempty"`

	// CameraEpoch increments every time the camera opens. Frame results
	// from an earlier epoch are dropped.
	CameraEpoch uint64 `json:"camera_epoch"`

	// RequestSeq is the sequence number of the current static request.
	RequestSeq uint64 `json:"request_seq"`

	// AppliedSeq is the highest frame sequence applied this epoch.
	AppliedSeq uint64 `json:"applied_seq"`

	// Reload asks the view for a full reload. Set only by CloseCamera.
	Reload bool `json:"reload"`
}

// CameraActive reports whether the camera workflow owns the session.
func (s State) CameraActive() bool {
	return s.Phase == PhaseCameraStreaming
}

// HasResults reports whether there is a batch to show.
func (s State) HasResults() bool {
	return !s.Batch.Empty()
}

// ShowGrid reports whether the per-box grid is shown. It needs two or more
// boxes.
func (s State) ShowGrid() bool {
	return s.NumberOfBoxes >= 2
}

// fresh returns an empty state that keeps the sequence counters, so a
// response issued before a reset can never match a later request.
func (s State) fresh() State {
	return State{
		CameraEpoch: s.CameraEpoch,
		RequestSeq:  s.RequestSeq,
	}
}
