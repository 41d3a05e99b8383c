package detections

import (
	"fmt"
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/Tutortoise/xray-analysis-service/models"
)

const anchorChunkSize = 1024

// Preprocess force-resizes img to 640x640 and returns it as a (1, 3, 640, 640)
// tensor in [0,1]. Grayscale input ends up with three identical channels.
func Preprocess(img image.Image) (models.Tensor, error) {
	if img == nil || img.Bounds().Empty() {
		return models.Tensor{}, fmt.Errorf("empty image")
	}

	resized := resize.Resize(InputWidth, InputHeight, opaque(img), resize.Bicubic)
	// Clone normalizes any source model (Gray, YCbCr, premultiplied RGBA) to NRGBA.
	src := imaging.Clone(resized)
	if src.Bounds().Dx() != InputWidth || src.Bounds().Dy() != InputHeight {
		return models.Tensor{}, fmt.Errorf("resize produced %dx%d, want %dx%d",
			src.Bounds().Dx(), src.Bounds().Dy(), InputWidth, InputHeight)
	}

	tensor := models.NewTensor(1, Channels, InputHeight, InputWidth)
	newChannelProcessor(InputWidth, InputHeight, tensor.Data).processChannels(src)
	return tensor, nil
}

// opaque copies img to NRGBA with every alpha forced to 255, so the colour of
// transparent pixels survives resizing unchanged.
func opaque(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// Postprocess decodes a raw (1, rows, anchors) output into boxes normalized by
// the model input size. Anchors scoring below threshold are dropped; the rest
// keep their anchor order. No suppression happens here.
func Postprocess(raw models.Tensor, inputWidth, inputHeight int, threshold float32) ([]models.DetectionBox, error) {
	if inputWidth <= 0 || inputHeight <= 0 {
		return nil, fmt.Errorf("invalid model input size %dx%d", inputWidth, inputHeight)
	}
	if err := raw.Validate(); err != nil {
		return nil, fmt.Errorf("invalid output tensor: %w", err)
	}
	if len(raw.Shape) != 3 || raw.Shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v, want (1, rows, anchors)", raw.Shape)
	}

	rows := int(raw.Shape[1])
	anchors := int(raw.Shape[2])
	if rows <= ConfidenceIndex {
		return nil, fmt.Errorf("output rows %d too small, need at least %d", rows, ConfidenceIndex+1)
	}

	predictions := raw.Data
	width := float32(inputWidth)
	height := float32(inputHeight)

	numChunks := (anchors + anchorChunkSize - 1) / anchorChunkSize
	chunks := make([][]models.DetectionBox, numChunks)

	numWorkers := runtime.NumCPU()
	if numWorkers > numChunks {
		numWorkers = numChunks
	}
	jobs := make(chan int, numChunks)
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range jobs {
				start := chunk * anchorChunkSize
				end := start + anchorChunkSize
				if end > anchors {
					end = anchors
				}

				var local []models.DetectionBox
				for i := start; i < end; i++ {
					confidence := predictions[ConfidenceIndex*anchors+i]
					// NaN fails this comparison as well.
					if !(confidence >= threshold) {
						continue
					}
					box, ok := calculateBox(
						predictions[i],
						predictions[anchors+i],
						predictions[2*anchors+i],
						predictions[3*anchors+i],
						width, height,
					)
					if !ok {
						continue
					}
					box.Confidence = confidence
					local = append(local, box)
				}
				chunks[chunk] = local
			}
		}()
	}

	for i := 0; i < numChunks; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	boxes := make([]models.DetectionBox, 0)
	for _, chunk := range chunks {
		boxes = append(boxes, chunk...)
	}
	return boxes, nil
}

// calculateBox expands a center/size box by ExpansionFactor and converts it to
// a top-left/size box in fractions of the model input.
func calculateBox(centerX, centerY, w, h, inputWidth, inputHeight float32) (models.DetectionBox, bool) {
	if !finite(centerX, centerY, w, h) || w < 0 || h < 0 {
		return models.DetectionBox{}, false
	}

	newWidth := w * ExpansionFactor
	newHeight := h * ExpansionFactor
	xMin := centerX - newWidth/2
	yMin := centerY - newHeight/2

	box := models.DetectionBox{
		X:      xMin / inputWidth,
		Y:      yMin / inputHeight,
		Width:  newWidth / inputWidth,
		Height: newHeight / inputHeight,
	}
	if !finite(box.X, box.Y, box.Width, box.Height) {
		return models.DetectionBox{}, false
	}
	return box, true
}

func finite(values ...float32) bool {
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
