package entity

// Dimensions is a width/height pair in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VideoInfo describes the analyzed video and the settings used.
// DurationSeconds is nil when fps or frame count is unknown.
type VideoInfo struct {
	FPS             float64     `json:"fps"`
	FrameCount      int         `json:"frame_count"`
	Width           int         `json:"width"`
	Height          int         `json:"height"`
	Stride          int         `json:"stride"`
	Confidence      float64     `json:"confidence"`
	DurationSeconds *float64    `json:"duration_seconds"`
	UploadBytes     int64       `json:"upload_bytes"`
	ScaledFrom      *Dimensions `json:"scaled_from,omitempty"`
}

// RankedSegment is a presence segment with its dominant species.
type RankedSegment struct {
	StartTime  float64      `json:"start_time"`
	EndTime    float64      `json:"end_time"`
	TopSpecies *SpeciesStat `json:"top_species"`
}

// KeyFrame is the first sampled frame on which a new combination of
// species appeared. ImageB64 holds the annotated frame as a base64
// JPEG so clients can show stills without downloading the video.
type KeyFrame struct {
	FrameIndex int            `json:"frame_index"`
	Time       *float64       `json:"time"`
	Detections []DetectionBox `json:"detections"`
	ImageB64   string         `json:"image_b64,omitempty"`
}

// ResultDocument is the finished analysis emitted for one video.
type ResultDocument struct {
	VideoID           string               `json:"video_id"`
	VideoURL          string               `json:"video_url"`
	VideoInfo         VideoInfo            `json:"video_info"`
	Segments          []RankedSegment      `json:"segments"`
	SpeciesRanking    []SpeciesStat        `json:"species_ranking"`
	SpeciesSegments   map[string][]Segment `json:"species_segments"`
	TopSpeciesOverall *string              `json:"top_species_overall"`
	KeyFrames         []KeyFrame           `json:"key_frames"`
	Observations      []FrameObservation   `json:"detections_per_frame"`
}
