package domain

// ValidationDetails records each boolean gate and the confidences behind it.
type ValidationDetails struct {
	HasMilk              bool    `json:"has_milk"`
	IsDrinking           bool    `json:"is_drinking"`
	IsCreative           bool    `json:"is_creative"`
	HasAudioMention      bool    `json:"has_audio_mention"`
	MilkConfidence       float64 `json:"milk_confidence"`
	DrinkingConfidence   float64 `json:"drinking_confidence"`
	CreativityConfidence float64 `json:"creativity_confidence"`
	AudioConfidence      float64 `json:"audio_confidence"`
	HasCampaignTags      bool    `json:"has_campaign_tags"`
	TagBoost             float64 `json:"tag_boost"`
}

// ValidationResult is the admission verdict for a video.
type ValidationResult struct {
	IsValid           bool              `json:"is_valid"`
	OverallConfidence float64           `json:"overall_confidence"`
	Details           ValidationDetails `json:"details"`
	Message           string            `json:"message"`
	Error             string            `json:"error,omitempty"`
}
