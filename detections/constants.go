package detections

const (
	InputWidth  = 640
	InputHeight = 640
	Channels    = 3

	// NumAnchors and RowSize describe the raw (1, 84, 8400) YOLOv8 output.
	NumAnchors = 8400
	RowSize    = 84

	// ConfidenceIndex is the offset of the score inside an anchor row. For the
	// single-class nodule model this is the class score; objectness and class
	// confidence are treated as one value.
	ConfidenceIndex = 4

	ConfThreshold = 0.25

	// ExpansionFactor scales box width and height around the center.
	ExpansionFactor = 1.2

	ModelName = "YOLOv8 (ONNX)"
)
