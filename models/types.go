package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type ModelType string

const (
	ModelDetect  ModelType = "detect"
	ModelSegment ModelType = "segment"
)

// KnownModelTypes lists every selector the service understands, loaded or not.
var KnownModelTypes = []ModelType{ModelDetect, ModelSegment}

func (t ModelType) Known() bool {
	for _, known := range KnownModelTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DetectionBox is a candidate box expressed as fractions of the model input.
type DetectionBox struct {
	X          float32
	Y          float32
	Width      float32
	Height     float32
	Confidence float32
}

func (b DetectionBox) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BoxPercent [4]float32 `json:"box_percent"`
		Confidence float32    `json:"confidence"`
	}{
		BoxPercent: [4]float32{b.X, b.Y, b.Width, b.Height},
		Confidence: b.Confidence,
	})
}

func (b *DetectionBox) UnmarshalJSON(data []byte) error {
	var raw struct {
		BoxPercent [4]float32 `json:"box_percent"`
		Confidence float32    `json:"confidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.X, b.Y, b.Width, b.Height = raw.BoxPercent[0], raw.BoxPercent[1], raw.BoxPercent[2], raw.BoxPercent[3]
	b.Confidence = raw.Confidence
	return nil
}

type OverlayResult struct {
	OverlayImageBase64 string `json:"overlay_image_base64"`
	HeatmapImageBase64 string `json:"heatmap_image_base64"`
}

type DetectionResponse struct {
	ModelUsed      string         `json:"modelUsed"`
	OverlayData    []DetectionBox `json:"overlayData"`
	ProcessingTime string         `json:"processingTime,omitempty"`
}

type SegmentationResponse struct {
	ModelUsed string `json:"modelUsed"`
	OverlayResult
	ProcessingTime string `json:"processingTime,omitempty"`
}

// Timed is implemented by response bodies that report their processing time.
type Timed interface {
	SetProcessingTime(d time.Duration)
}

func (r *DetectionResponse) SetProcessingTime(d time.Duration) {
	r.ProcessingTime = FormatSeconds(d)
}

func (r *SegmentationResponse) SetProcessingTime(d time.Duration) {
	r.ProcessingTime = FormatSeconds(d)
}

func FormatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

type ProcessingTimings struct {
	RequestID   string
	ModelType   ModelType
	ImageDecode time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Total       time.Duration
}
