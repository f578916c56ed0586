package session

import "github.com/teslashibe/go-detect/pkg/detection"

// Reduce applies a to s and returns the next state. Actions that are not
// valid in the current phase leave the state unchanged.
//
// Transitions:
//
//	SelectFile        any              -> Idle with file
//	BeginProcess      Idle with file   -> Uploading
//	UploadProgress    Uploading        -> Uploading | Processing (at 100%)
//	ProcessSucceeded  Uploading|Processing -> Idle with results
//	ProcessFailed     Uploading|Processing -> Idle, results unchanged
//	OpenCamera        any              -> CameraStreaming
//	FrameDetected     CameraStreaming  -> CameraStreaming
//	FrameFailed       CameraStreaming  -> CameraStreaming
//	CloseCamera       CameraStreaming  -> Idle, hard reset
//	ClearImage        Idle|Uploading|Processing -> Idle, empty
func Reduce(s State, a Action) State {
	next, _ := reduce(s, a)
	return next
}

// reduce also reports whether the action was applied.
func reduce(s State, a Action) (State, bool) {
	switch a := a.(type) {
	case SelectFile:
		next := s.fresh()
		file := a.File
		next.Input = InputFile
		next.File = &file
		next.OriginalImage = a.OriginalImage
		return next, true

	case BeginProcess:
		if s.Phase != PhaseIdle || s.Input != InputFile || s.File == nil {
			return s, false
		}
		next := s
		next.Phase = PhaseUploading
		next.Progress = 0
		next.LastError = nil
		next.Reload = false
		next.RequestSeq++
		return next, true

	case UploadProgress:
		if s.Phase != PhaseUploading || a.Seq != s.RequestSeq {
			return s, false
		}
		next := s
		next.Progress = clampPercent(a.Percent)
		if next.Progress >= 100 {
			next.Phase = PhaseProcessing
		}
		return next, true

	case ProcessSucceeded:
		if !s.Phase.Busy() || a.Seq != s.RequestSeq || a.Result == nil {
			return s, false
		}
		next := s
		next.Phase = PhaseIdle
		next.Progress = 100
		next.LastError = nil
		next.ProcessedImageURL = a.Result.ProcessedImageURL
		next.applyResult(detection.SubjectImage, a.Result)
		return next, true

	case ProcessFailed:
		if !s.Phase.Busy() || a.Seq != s.RequestSeq {
			return s, false
		}
		next := s
		next.Phase = PhaseIdle
		next.LastError = a.Failure
		return next, true

	case OpenCamera:
		next := s.fresh()
		next.Input = InputCameraFrame
		next.Phase = PhaseCameraStreaming
		next.CameraEpoch++
		return next, true

	case FrameDetected:
		if !s.acceptsFrame(a.Epoch, a.Seq) || a.Result == nil {
			return s, false
		}
		next := s
		next.AppliedSeq = a.Seq
		next.LastError = nil
		next.applyResult(detection.SubjectFrame, a.Result)
		return next, true

	case FrameFailed:
		if !s.acceptsFrame(a.Epoch, a.Seq) {
			return s, false
		}
		next := s
		next.AppliedSeq = a.Seq
		next.LastError = a.Failure
		return next, true

	case CloseCamera:
		if s.Phase != PhaseCameraStreaming {
			return s, false
		}
		next := s.fresh()
		next.Reload = true
		return next, true

	case ClearImage:
		if s.Phase == PhaseCameraStreaming {
			return s, false
		}
		return s.fresh(), true
	}

	return s, false
}

// acceptsFrame reports whether a frame response is current: same camera
// epoch and newer than anything applied. An older frame resolving late is
// dropped, so the most recently sent frame wins.
func (s State) acceptsFrame(epoch, seq uint64) bool {
	return s.Phase == PhaseCameraStreaming &&
		epoch == s.CameraEpoch &&
		seq > s.AppliedSeq
}

func (s *State) applyResult(subject detection.Subject, r *detection.Result) {
	s.Batch = r.Batch
	s.NumberOfBoxes = r.NumberOfBoxes
	if s.NumberOfBoxes == 0 {
		s.NumberOfBoxes = r.Count()
	}
	s.Summary = detection.Describe(subject, r.Batch)
	s.Reload = false
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
