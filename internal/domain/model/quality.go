package model

// ImageQualityResult is the usability verdict for one candidate image.
type ImageQualityResult struct {
	IsGood         bool     `json:"is_good"`
	SharpnessScore float64  `json:"sharpness_score"`
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	BytesPerPixel  float64  `json:"bytes_per_pixel"`
	Borderline     bool     `json:"borderline"`
	Reasons        []string `json:"reasons"`
}
