package session

import "github.com/teslashibe/go-detect/pkg/detection"

// Action is a state transition request. See Reduce.
type Action interface {
	action() string
}

// SelectFile switches to the file workflow with a newly chosen file.
type SelectFile struct {
	File          FileRef
	OriginalImage string
}

// BeginProcess starts uploading the selected file.
type BeginProcess struct{}

// UploadProgress reports upload progress for request Seq.
type UploadProgress struct {
	Seq     uint64
	Percent int
}

// ProcessSucceeded delivers the result of request Seq.
type ProcessSucceeded struct {
	Seq    uint64
	Result *detection.Result
}

// ProcessFailed reports that request Seq failed.
type ProcessFailed struct {
	Seq     uint64
	Failure *detection.Failure
}

// OpenCamera switches to the camera workflow.
type OpenCamera struct{}

// FrameDetected delivers the result for frame Seq of camera Epoch.
type FrameDetected struct {
	Epoch  uint64
	Seq    uint64
	Result *detection.Result
}

// FrameFailed reports that frame Seq of camera Epoch failed.
type FrameFailed struct {
	Epoch   uint64
	Seq     uint64
	Failure *detection.Failure
}

// CloseCamera leaves the camera workflow with a hard reset.
type CloseCamera struct{}

// ClearImage drops the selected file and all results.
type ClearImage struct{}

func (SelectFile) action() string       { return "select_file" }
func (BeginProcess) action() string     { return "begin_process" }
func (UploadProgress) action() string   { return "upload_progress" }
func (ProcessSucceeded) action() string { return "process_succeeded" }
func (ProcessFailed) action() string    { return "process_failed" }
func (OpenCamera) action() string       { return "open_camera" }
func (FrameDetected) action() string    { return "frame_detected" }
func (FrameFailed) action() string      { return "frame_failed" }
func (CloseCamera) action() string      { return "close_camera" }
func (ClearImage) action() string       { return "clear_image" }

// ActionName returns a short name for logging.
func ActionName(a Action) string {
	if a == nil {
		return ""
	}
	return a.action()
}
