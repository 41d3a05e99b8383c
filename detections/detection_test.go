package detections

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tutortoise/xray-analysis-service/models"
)

func solidRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func gradientGray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*7 + y*3) % 256)})
		}
	}
	return img
}

// rawOutput builds a (1, rows, anchors) tensor; each candidate is
// {cx, cy, w, h, conf}.
func rawOutput(rows, anchors int, candidates map[int][5]float32) models.Tensor {
	t := models.NewTensor(1, int64(rows), int64(anchors))
	for i, c := range candidates {
		for j := 0; j < 5; j++ {
			t.Data[j*anchors+i] = c[j]
		}
	}
	return t
}

func TestPreprocessShapeAndRange(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
	}{
		{"rgb square", solidRGBA(640, 640, color.RGBA{R: 200, G: 100, B: 50, A: 255})},
		{"rgb wide", solidRGBA(1000, 300, color.RGBA{R: 1, G: 2, B: 3, A: 255})},
		{"gray tall", gradientGray(123, 977)},
		{"gray tiny", gradientGray(1, 1)},
		{"offset bounds", solidRGBA(50, 60, color.RGBA{R: 255, A: 255}).SubImage(image.Rect(10, 10, 40, 50))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tensor, err := Preprocess(tt.img)
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 3, 640, 640}, tensor.Shape)
			require.NoError(t, tensor.Validate())
			for i, v := range tensor.Data {
				if v < 0 || v > 1 {
					t.Fatalf("value %d out of range: %f", i, v)
				}
			}
		})
	}
}

func TestPreprocessGrayscaleReplicatesChannel(t *testing.T) {
	tensor, err := Preprocess(gradientGray(320, 200))
	require.NoError(t, err)

	plane := InputWidth * InputHeight
	for i := 0; i < plane; i += 997 {
		assert.Equal(t, tensor.Data[i], tensor.Data[plane+i])
		assert.Equal(t, tensor.Data[i], tensor.Data[2*plane+i])
	}
}

func TestPreprocessSolidColorRoundTrip(t *testing.T) {
	want := color.RGBA{R: 200, G: 100, B: 50, A: 255}
	tensor, err := Preprocess(solidRGBA(InputWidth, InputHeight, want))
	require.NoError(t, err)

	plane := InputWidth * InputHeight
	expected := []uint8{want.R, want.G, want.B}
	for c := 0; c < Channels; c++ {
		for _, i := range []int{0, plane / 2, plane - 1} {
			got := math.Round(float64(tensor.Data[c*plane+i]) * 255)
			assert.InDelta(t, float64(expected[c]), got, 1, "channel %d index %d", c, i)
		}
	}
}

func TestPreprocessChannelOrder(t *testing.T) {
	tensor, err := Preprocess(solidRGBA(64, 64, color.RGBA{R: 255, G: 0, B: 0, A: 255}))
	require.NoError(t, err)

	plane := InputWidth * InputHeight
	assert.InDelta(t, 1.0, tensor.Data[plane/2], 1.0/255)
	assert.InDelta(t, 0.0, tensor.Data[plane+plane/2], 1.0/255)
	assert.InDelta(t, 0.0, tensor.Data[2*plane+plane/2], 1.0/255)
}

func TestPreprocessIgnoresAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			// fully transparent on the left, partially transparent on the right
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: uint8(x * 2)})
		}
	}

	tensor, err := Preprocess(img)
	require.NoError(t, err)

	plane := InputWidth * InputHeight
	for c, want := range []float64{200, 100, 50} {
		for _, i := range []int{0, plane / 2, plane - 1} {
			assert.InDelta(t, want/255, tensor.Data[c*plane+i], 1.5/255, "channel %d pixel %d", c, i)
		}
	}
}

func TestPreprocessRejectsEmpty(t *testing.T) {
	_, err := Preprocess(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)

	_, err = Preprocess(nil)
	assert.Error(t, err)
}

func TestPostprocessGeometry(t *testing.T) {
	raw := rawOutput(RowSize, NumAnchors, map[int][5]float32{
		10: {320, 320, 100, 50, 0.9},
	})

	boxes, err := Postprocess(raw, InputWidth, InputHeight, ConfThreshold)
	require.NoError(t, err)
	require.Len(t, boxes, 1)

	// 100x50 expanded by 1.2 is 120x60, so the corner sits at (260, 290).
	box := boxes[0]
	assert.InDelta(t, 260.0/640, box.X, 1e-6)
	assert.InDelta(t, 290.0/640, box.Y, 1e-6)
	assert.InDelta(t, 120.0/640, box.Width, 1e-6)
	assert.InDelta(t, 60.0/640, box.Height, 1e-6)
	assert.InDelta(t, 0.9, box.Confidence, 1e-6)
}

func TestPostprocessThreshold(t *testing.T) {
	raw := rawOutput(RowSize, NumAnchors, map[int][5]float32{
		0:    {10, 10, 5, 5, 0.2499},
		1:    {10, 10, 5, 5, 0.25},
		2:    {10, 10, 5, 5, 0.1},
		8399: {600, 600, 40, 40, 1.0},
	})

	boxes, err := Postprocess(raw, InputWidth, InputHeight, ConfThreshold)
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	for _, b := range boxes {
		assert.GreaterOrEqual(t, b.Confidence, float32(ConfThreshold))
	}
}

func TestPostprocessKeepsAnchorOrder(t *testing.T) {
	candidates := map[int][5]float32{}
	for i := 0; i < NumAnchors; i += 37 {
		candidates[i] = [5]float32{float32(i % 640), 100, 10, 10, 0.3 + float32(i%7)/10}
	}
	raw := rawOutput(RowSize, NumAnchors, candidates)

	boxes, err := Postprocess(raw, InputWidth, InputHeight, ConfThreshold)
	require.NoError(t, err)
	require.Len(t, boxes, len(candidates))

	i := 0
	for anchor := 0; anchor < NumAnchors; anchor += 37 {
		want := candidates[anchor]
		assert.InDelta(t, want[4], boxes[i].Confidence, 1e-6, "anchor %d", anchor)
		i++
	}
}

func TestPostprocessNoDeduplication(t *testing.T) {
	raw := rawOutput(RowSize, NumAnchors, map[int][5]float32{
		5: {100, 100, 20, 20, 0.8},
		6: {101, 100, 20, 20, 0.7},
	})

	boxes, err := Postprocess(raw, InputWidth, InputHeight, ConfThreshold)
	require.NoError(t, err)
	assert.Len(t, boxes, 2)
}

func TestPostprocessSkipsInvalidGeometry(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	raw := rawOutput(RowSize, NumAnchors, map[int][5]float32{
		0: {nan, 10, 5, 5, 0.9},
		1: {10, inf, 5, 5, 0.9},
		2: {10, 10, -5, 5, 0.9},
		3: {10, 10, 5, 5, nan},
		4: {10, 10, 5, 5, 0.9},
	})

	boxes, err := Postprocess(raw, InputWidth, InputHeight, ConfThreshold)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	b := boxes[0]
	assert.False(t, math.IsNaN(float64(b.X)) || math.IsInf(float64(b.X), 0))
	assert.GreaterOrEqual(t, b.Width, float32(0))
	assert.GreaterOrEqual(t, b.Height, float32(0))
}

func TestPostprocessEmpty(t *testing.T) {
	boxes, err := Postprocess(models.NewTensor(1, RowSize, NumAnchors), InputWidth, InputHeight, ConfThreshold)
	require.NoError(t, err)
	assert.NotNil(t, boxes)
	assert.Empty(t, boxes)
}

func TestPostprocessSingleClassShape(t *testing.T) {
	raw := rawOutput(5, NumAnchors, map[int][5]float32{42: {64, 64, 32, 32, 0.5}})
	boxes, err := Postprocess(raw, InputWidth, InputHeight, ConfThreshold)
	require.NoError(t, err)
	assert.Len(t, boxes, 1)
}

func TestPostprocessRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  models.Tensor
	}{
		{"two dims", models.NewTensor(RowSize, NumAnchors)},
		{"batch of two", models.NewTensor(2, RowSize, NumAnchors)},
		{"too few rows", models.NewTensor(1, 4, NumAnchors)},
		{"length mismatch", models.Tensor{Shape: []int64{1, RowSize, NumAnchors}, Data: make([]float32, 10)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Postprocess(tt.raw, InputWidth, InputHeight, ConfThreshold)
			assert.Error(t, err)
		})
	}

	_, err := Postprocess(models.NewTensor(1, RowSize, NumAnchors), 0, InputHeight, ConfThreshold)
	assert.Error(t, err)
}

func TestSuppressOverlaps(t *testing.T) {
	boxes := []models.DetectionBox{
		{X: 0.10, Y: 0.10, Width: 0.2, Height: 0.2, Confidence: 0.6},
		{X: 0.11, Y: 0.10, Width: 0.2, Height: 0.2, Confidence: 0.9},
		{X: 0.60, Y: 0.60, Width: 0.1, Height: 0.1, Confidence: 0.4},
	}

	kept := SuppressOverlaps(boxes, 0.5)
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].Confidence)
	assert.Equal(t, float32(0.4), kept[1].Confidence)

	// input untouched
	assert.Equal(t, float32(0.6), boxes[0].Confidence)
	assert.Empty(t, SuppressOverlaps(nil, 0.5))
}

func TestCalculateIOU(t *testing.T) {
	a := models.DetectionBox{X: 0, Y: 0, Width: 2, Height: 2}
	assert.InDelta(t, 1.0, calculateIOU(a, a), 1e-9)
	assert.InDelta(t, 1.0/7.0, calculateIOU(a, models.DetectionBox{X: 1, Y: 1, Width: 2, Height: 2}), 1e-9)
	assert.Equal(t, 0.0, calculateIOU(a, models.DetectionBox{X: 5, Y: 5, Width: 1, Height: 1}))
}

func TestAdapter(t *testing.T) {
	adapter := NewAdapter(DefaultOptions())
	assert.Equal(t, "YOLOv8 (ONNX)", adapter.Name())
	assert.Equal(t, []int64{1, 3, 640, 640}, adapter.InputShape())
	assert.Equal(t, []int64{1, 84, 8400}, adapter.OutputShape())

	raw := rawOutput(RowSize, NumAnchors, map[int][5]float32{
		1: {100, 100, 20, 20, 0.6},
		2: {100, 100, 20, 20, 0.9},
	})
	result, err := adapter.Postprocess(nil, raw)
	require.NoError(t, err)
	resp, ok := result.(*models.DetectionResponse)
	require.True(t, ok)
	assert.Equal(t, ModelName, resp.ModelUsed)
	assert.Len(t, resp.OverlayData, 2)

	suppressing := NewAdapter(Options{ConfidenceThreshold: ConfThreshold, IoUThreshold: 0.45})
	result, err = suppressing.Postprocess(nil, raw)
	require.NoError(t, err)
	assert.Len(t, result.(*models.DetectionResponse).OverlayData, 1)
}
