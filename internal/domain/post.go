package domain

// Location identifies where a video was filmed.
type Location struct {
	PlaceName string `json:"place_name,omitempty" yaml:"place_name"`
	City      string `json:"city,omitempty"       yaml:"city"`
}

// IsZero reports whether no place name is set.
func (l *Location) IsZero() bool {
	return l == nil || l.PlaceName == ""
}

// PostMetadata is the social metadata accompanying a submission.
type PostMetadata struct {
	Caption    string    `json:"caption,omitempty"`
	Hashtags   []string  `json:"hashtags,omitempty"`
	Location   *Location `json:"location,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	PostTime   string    `json:"post_time,omitempty"`
	Device     string    `json:"device,omitempty"`
	AppVersion string    `json:"app_version,omitempty"`
}

// PostExtract is the metadata view derived from a post.
type PostExtract struct {
	Location   *Location `json:"location,omitempty"`
	Caption    string    `json:"caption,omitempty"`
	Mentions   []string  `json:"mentions"`
	UserID     string    `json:"user_id,omitempty"`
	PostTime   string    `json:"post_time,omitempty"`
	Device     string    `json:"device,omitempty"`
	AppVersion string    `json:"app_version,omitempty"`
}

// TagResult is the outcome of hashtag detection.
type TagResult struct {
	IsCampaignTagged  bool     `json:"is_campaign_tagged"`
	CampaignTagsFound []string `json:"campaign_tags_found"`
	AllTagsFound      []string `json:"all_tags_found"`
	ConfidenceScore   float64  `json:"confidence_score"`
}

// TagCount is a campaign tag and the number of times it has been seen.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}
