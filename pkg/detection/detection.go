// Package detection talks to the remote object-detection service and
// summarizes what it found.
//
// A Detector turns one image into a Result. The HTTP Client posts the image
// as multipart form data to POST /upload and decodes the JSON detections:
//
//	client, _ := detection.NewClient(
//	    detection.WithBaseURL("http://localhost:5000"),
//	)
//	defer client.Close()
//
//	res, err := client.Detect(ctx, &detection.Upload{
//	    Filename: "street.jpg",
//	    Data:     data,
//	    Subject:  detection.SubjectImage,
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(detection.Describe(detection.SubjectImage, res.Batch))
package detection

import (
	"context"
	"fmt"
	"time"
)

// Detector produces detections for a single still image.
type Detector interface {
	// Detect analyzes one image and returns its detections.
	Detect(ctx context.Context, up *Upload) (*Result, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Subject says what kind of image is being analyzed. It selects the
// request timeout, the default filename and the summary wording.
type Subject string

const (
	// SubjectImage is a user-selected file.
	SubjectImage Subject = "image"
	// SubjectFrame is a frame grabbed from a live camera.
	SubjectFrame Subject = "frame"
)

// FrameFilename is the multipart filename used for camera frames.
const FrameFilename = "captured-frame.jpg"

// Detection is one predicted object instance. Coordinates are pixels.
type Detection struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	ClassName  string  `json:"className"`
}

// Width returns the box width in pixels.
func (d Detection) Width() float64 { return d.X2 - d.X1 }

// Height returns the box height in pixels.
func (d Detection) Height() float64 { return d.Y2 - d.Y1 }

// Area returns the box area in square pixels.
func (d Detection) Area() float64 { return d.Width() * d.Height() }

// String formats the box the way the dashboard grid shows it.
func (d Detection) String() string {
	return fmt.Sprintf("(%.2f, %.2f) - (%.2f, %.2f) %s %.2f",
		d.X1, d.Y1, d.X2, d.Y2, d.ClassName, d.Confidence)
}

// Batch is every detection returned for one image or frame.
// Batches are replaced wholesale, never merged.
type Batch struct {
	Detections []Detection `json:"detections"`
}

// NewBatch copies dets into a new batch.
func NewBatch(dets []Detection) Batch {
	if len(dets) == 0 {
		return Batch{}
	}
	out := make([]Detection, len(dets))
	copy(out, dets)
	return Batch{Detections: out}
}

// Count returns the number of detections.
func (b Batch) Count() int { return len(b.Detections) }

// Empty reports whether the batch has no detections.
func (b Batch) Empty() bool { return len(b.Detections) == 0 }

// Upload is a single image to send to the detector.
type Upload struct {
	// Filename is sent as the multipart filename. Frames default to
	// FrameFilename.
	Filename string

	// ContentType of Data, used for the multipart part header.
	// Empty means application/octet-stream.
	ContentType string

	// Data is the raw image. It is forwarded as-is.
	Data []byte

	// Subject selects image or frame behavior.
	Subject Subject

	// Timeout overrides the client default for this request.
	Timeout time.Duration

	// OnProgress is called as request bytes are written.
	OnProgress func(Progress)
}

// Result is the normalized response for one upload.
type Result struct {
	Batch

	// NumberOfBoxes as reported by the backend.
	NumberOfBoxes int `json:"number_of_boxes"`

	// Image is the backend's relative path to the annotated image.
	Image string `json:"image,omitempty"`

	// ProcessedImageURL is set for SubjectImage uploads only.
	ProcessedImageURL string `json:"processed_image_url,omitempty"`

	// RequestID correlates the upload in logs.
	RequestID string `json:"request_id,omitempty"`

	// LatencyMs is the round-trip time in milliseconds.
	LatencyMs int64 `json:"latency_ms"`
}

// UploadResponse is the JSON body returned by POST /upload.
type UploadResponse struct {
	Detections    []Detection `json:"detections"`
	NumberOfBoxes int         `json:"number_of_boxes"`
	Image         string      `json:"image"`
}
