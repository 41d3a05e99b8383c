package detections

import (
	"image"
	"sync"
)

type channelProcessor struct {
	width, height int
	buffer        []float32
	channelSize   int
}

func newChannelProcessor(width, height int, buffer []float32) *channelProcessor {
	return &channelProcessor{
		width:       width,
		height:      height,
		channelSize: width * height,
		buffer:      buffer,
	}
}

// processChannels writes img into the buffer as planar R, G, B scaled to [0,1].
// img must already be width x height.
func (cp *channelProcessor) processChannels(img *image.NRGBA) {
	var wg sync.WaitGroup
	wg.Add(Channels)

	// Process each channel concurrently
	for c := 0; c < Channels; c++ {
		go func(channel int) {
			defer wg.Done()
			offset := channel * cp.channelSize
			for y := 0; y < cp.height; y++ {
				row := img.Pix[y*img.Stride:]
				for x := 0; x < cp.width; x++ {
					cp.buffer[offset+y*cp.width+x] = float32(row[x*4+channel]) / 255.0
				}
			}
		}(c)
	}

	wg.Wait()
}
