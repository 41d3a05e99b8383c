package segmentations

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// EncodeDataURI encodes img as PNG wrapped in a base64 data URI.
func EncodeDataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", err
	}
	return DataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeDataURI reverses EncodeDataURI.
func DecodeDataURI(uri string) (image.Image, error) {
	if !strings.HasPrefix(uri, DataURIPrefix) {
		return nil, fmt.Errorf("not a PNG data URI")
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, DataURIPrefix))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return imaging.Decode(bytes.NewReader(data))
}
