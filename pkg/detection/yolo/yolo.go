// Package yolo runs a YOLOv8 ONNX model locally through gocv so images
// can be analyzed without the remote backend.
package yolo

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-detect/pkg/detection"
)

// Config holds detector configuration.
type Config struct {
	ModelPath        string
	ConfidenceThresh float32
	NMSThresh        float32
	InputWidth       int
	InputHeight      int
}

// DefaultConfig returns defaults for YOLOv8n.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.25,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// Detector uses YOLOv8 for general object detection.
type Detector struct {
	net       gocv.Net
	config    Config
	inputSize image.Point
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
}

// New loads the model at cfg.ModelPath.
func New(cfg Config, logger *slog.Logger) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("yolo: model file: %w", err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("yolo: failed to load model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
		logger:    logger.With("component", "detection.yolo", "model", cfg.ModelPath),
	}, nil
}

// Detect decodes the upload and runs one forward pass. Boxes come back
// in pixel coordinates of the source image.
func (d *Detector) Detect(ctx context.Context, up *detection.Upload) (*detection.Result, error) {
	if up == nil || len(up.Data) == 0 {
		return nil, detection.ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("yolo: detector closed")
	}

	img, err := gocv.IMDecode(up.Data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("yolo: decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("yolo: empty image")
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	dets := d.parse(output, float32(img.Cols()), float32(img.Rows()))

	d.logger.Debug("local detection", "count", len(dets))

	return &detection.Result{
		Batch:         detection.NewBatch(dets),
		NumberOfBoxes: len(dets),
		LatencyMs:     time.Since(start).Milliseconds(),
	}, nil
}

// parse decodes the [1, 84, 8400] YOLOv8 tensor: 4 box values
// (cx, cy, w, h) then 80 class scores per candidate.
func (d *Detector) parse(output gocv.Mat, imgW, imgH float32) []detection.Detection {
	sizes := output.Size()
	if len(sizes) < 3 {
		return nil
	}
	cols := sizes[1]
	rows := sizes[2]

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil
	}

	scaleX := imgW / float32(d.config.InputWidth)
	scaleY := imgH / float32(d.config.InputHeight)

	var boxes []image.Rectangle
	var scores []float32
	var classIDs []int

	for i := 0; i < rows; i++ {
		best := float32(0)
		bestID := 0
		for c := 4; c < cols; c++ {
			if s := data[c*rows+i]; s > best {
				best = s
				bestID = c - 4
			}
		}
		if best < d.config.ConfidenceThresh {
			continue
		}

		cx := data[0*rows+i]
		cy := data[1*rows+i]
		w := data[2*rows+i]
		h := data[3*rows+i]

		boxes = append(boxes, image.Rect(
			int((cx-w/2)*scaleX), int((cy-h/2)*scaleY),
			int((cx+w/2)*scaleX), int((cy+h/2)*scaleY),
		))
		scores = append(scores, best)
		classIDs = append(classIDs, bestID)
	}

	if len(boxes) == 0 {
		return nil
	}

	indices := gocv.NMSBoxes(boxes, scores, d.config.ConfidenceThresh, d.config.NMSThresh)

	dets := make([]detection.Detection, 0, len(indices))
	for _, idx := range indices {
		box := boxes[idx]
		dets = append(dets, detection.Detection{
			X1:         float64(box.Min.X),
			Y1:         float64(box.Min.Y),
			X2:         float64(box.Max.X),
			Y2:         float64(box.Max.Y),
			Confidence: float64(scores[idx]),
			ClassName:  detection.ClassName(classIDs[idx]),
		})
	}
	return dets
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}

var _ detection.Detector = (*Detector)(nil)
