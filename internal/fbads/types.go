package fbads

import "time"

// Insights is the per-ad metric set derived from the Marketing API.
type Insights struct {
	Spend                 float64 `json:"spend"`
	CPA                   float64 `json:"cpa"`
	WebsitePurchases      int     `json:"website_purchases"`
	WebsitePurchasesValue float64 `json:"website_purchases_value"`
	ROAS                  float64 `json:"roas"`
	CPM                   float64 `json:"cpm"`
	UniqueCTR             float64 `json:"unique_ctr"`
	Frequency             float64 `json:"frequency"`
	// HookRate is 3-second video views / impressions, as a percentage.
	HookRate float64 `json:"hook_rate"`
	// HoldRate is thru-plays / 3-second views, as a percentage.
	HoldRate float64 `json:"hold_rate"`
}

// Ad is a winning ad candidate. Not persisted to SQLite; cached to disk
// as JSON per ad account.
type Ad struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreativeID string    `json:"creative_id,omitempty"`
	VideoID    string    `json:"video_id,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	Insights   *Insights `json:"insights,omitempty"`
}

// cpa and roas tolerate ads cached without an insights block.
func (a Ad) cpa() float64 {
	if a.Insights == nil {
		return 0
	}
	return a.Insights.CPA
}

func (a Ad) roas() float64 {
	if a.Insights == nil {
		return 0
	}
	return a.Insights.ROAS
}

// HasVideo reports whether the ad's creative is a video.
func (a Ad) HasVideo() bool { return a.VideoID != "" }

// HasImage reports whether the ad's creative is a static image.
func (a Ad) HasImage() bool { return a.ImageURL != "" }

// AdAccount is returned by the token probe.
type AdAccount struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status int    `json:"account_status"`
}

// SortBy values accepted by Filters.
const (
	SortROASDesc = "roas_desc"
	SortCPAAsc   = "cpa_asc"
)

// Filters narrows and orders the winning-ad selection. Zero-value fields
// fall back to the client defaults; any non-zero field marks the query
// ad hoc, which bypasses the disk cache.
type Filters struct {
	SpendMin *float64
	CPAMax   *float64
	ROASMin  *float64
	Since    time.Time
	Until    time.Time
	SortBy   string
}

// AdHoc reports whether any caller-supplied filter is present.
func (f Filters) AdHoc() bool {
	return f.SpendMin != nil || f.CPAMax != nil || f.ROASMin != nil ||
		!f.Since.IsZero() || !f.Until.IsZero()
}

// BestAd returns the first ad matching mediaType ("video" or "image") in a
// sorted winning-ads list, or false when none qualifies.
func BestAd(ads []Ad, mediaType string) (Ad, bool) {
	for _, ad := range ads {
		switch mediaType {
		case "video":
			if ad.HasVideo() {
				return ad, true
			}
		case "image":
			if ad.HasImage() {
				return ad, true
			}
		}
	}
	return Ad{}, false
}

// AdByID looks an ad up in a winning-ads list.
func AdByID(ads []Ad, id string) (Ad, bool) {
	for _, ad := range ads {
		if ad.ID == id {
			return ad, true
		}
	}
	return Ad{}, false
}
