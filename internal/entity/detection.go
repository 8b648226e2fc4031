package entity

// PixelBox is an axis-aligned bounding box in pixel coordinates.
type PixelBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// DetectionBox is a single detector hit. Box is in source-frame pixels;
// OutBox is set when the output video is scaled down.
type DetectionBox struct {
	Species    string    `json:"species"`
	Confidence float64   `json:"confidence"`
	Box        PixelBox  `json:"bbox"`
	OutBox     *PixelBox `json:"out_bbox,omitempty"`
}

// FrameObservation is the detector output for one sampled frame.
// Time is nil when the source fps is unknown (fps <= 0).
type FrameObservation struct {
	FrameIndex int            `json:"frame_index"`
	Time       *float64       `json:"time"`
	Detections []DetectionBox `json:"detections"`
}

// Segment is a contiguous time range with detections present.
type Segment struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// SpeciesStat is an occurrence count for one species across sampled frames.
type SpeciesStat struct {
	Species string `json:"species"`
	Count   int    `json:"count"`
}
