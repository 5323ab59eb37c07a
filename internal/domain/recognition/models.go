package recognition

// Frame is one encoded image sampled from an upload or a camera source.
// It lives for the duration of a single recognition call.
type Frame struct {
	Data     []byte
	MIMEType string
	Filename string
}

// Box is a bounding box in source-image pixel space.
type Box struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

type RegionGuess struct {
	Code  string  `json:"code"`
	Score float64 `json:"score"`
}

type AltCandidate struct {
	Plate string  `json:"plate"`
	Score float64 `json:"score"`
}

// PlateCandidate is one OCR-proposed plate reading. Optional upstream
// fields stay pointers so that absence is distinguishable from a zero
// value.
type PlateCandidate struct {
	Plate       string         `json:"plate"`
	Score       float64        `json:"score"`
	Region      *RegionGuess   `json:"region,omitempty"`
	Box         *Box           `json:"box,omitempty"`
	VehicleType *string        `json:"vehicle_type,omitempty"`
	Alternates  []AltCandidate `json:"alternates,omitempty"`
}

type RankedLabel struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type Detection struct {
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	Label      *string `json:"label,omitempty"`
	Box        *Box    `json:"box,omitempty"`
}

type ColorGuess struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// VisionResult is the vehicle-attribute classifier payload: top vehicle
// detection, ranked make/model predictions and the dominant color.
type VisionResult struct {
	Detection Detection     `json:"detection"`
	Color     *ColorGuess   `json:"color,omitempty"`
	Makes     []RankedLabel `json:"makes"`
	Models    []RankedLabel `json:"models"`
}

const (
	DetectionFound    = "detected"
	DetectionNotFound = "not_detected"
)

type VisionStatus string

const (
	VisionOK    VisionStatus = "ok"
	VisionError VisionStatus = "error"
)

// Result is the unified view over both upstreams. Vision is non-nil
// exactly when VisionStatus is VisionOK; the plate list can be empty
// regardless of vision status since the two upstreams fail
// independently.
type Result struct {
	Plates        []PlateCandidate `json:"plates"`
	VisionStatus  VisionStatus     `json:"vision_status"`
	VisionReason  string           `json:"vision_reason,omitempty"`
	Vision        *VisionResult    `json:"vision,omitempty"`
	OCRSkipReason string           `json:"ocr_skip_reason,omitempty"`
	ImageWidth    int              `json:"image_width"`
	ImageHeight   int              `json:"image_height"`
}

// TopCandidate returns the highest-scored plate candidate, with ties
// broken by upstream order. Nil when no candidates were produced.
func (r *Result) TopCandidate() *PlateCandidate {
	if r == nil || len(r.Plates) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(r.Plates); i++ {
		if r.Plates[i].Score > r.Plates[best].Score {
			best = i
		}
	}
	return &r.Plates[best]
}
