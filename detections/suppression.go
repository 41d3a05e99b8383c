package detections

import (
	"math"
	"sort"

	"github.com/Tutortoise/xray-analysis-service/models"
)

// SuppressOverlaps keeps the highest-confidence box of every group whose IoU
// exceeds iouThreshold. The result is ordered by descending confidence. The
// input slice is not modified.
func SuppressOverlaps(boxes []models.DetectionBox, iouThreshold float32) []models.DetectionBox {
	if len(boxes) == 0 {
		return boxes
	}

	sorted := make([]models.DetectionBox, len(boxes))
	copy(sorted, boxes)
	sortDetectionsByConfidence(sorted)

	kept := make([]models.DetectionBox, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if !suppressed[j] && calculateIOU(sorted[i], sorted[j]) > float64(iouThreshold) {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func calculateIOU(box1, box2 models.DetectionBox) float64 {
	x1 := math.Max(float64(box1.X), float64(box2.X))
	y1 := math.Max(float64(box1.Y), float64(box2.Y))
	x2 := math.Min(float64(box1.X+box1.Width), float64(box2.X+box2.Width))
	y2 := math.Min(float64(box1.Y+box1.Height), float64(box2.Y+box2.Height))

	if x2 <= x1 || y2 <= y1 {
		return 0.0
	}

	intersection := (x2 - x1) * (y2 - y1)
	area1 := float64(box1.Width) * float64(box1.Height)
	area2 := float64(box2.Width) * float64(box2.Height)
	union := area1 + area2 - intersection
	if union <= 0 {
		return 0.0
	}

	return intersection / union
}

func sortDetectionsByConfidence(detections []models.DetectionBox) {
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})
}
