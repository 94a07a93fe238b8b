package stats

// Counts backs the admin dashboard. Tags and subtags are counted separately.
type Counts struct {
	TotalUsers          int `json:"totalUsers"`
	TotalTenders        int `json:"totalTenders"`
	TotalPendingTenders int `json:"totalPendingTenders"`
	TotalTags           int `json:"totalTags"`
	TotalSubtags        int `json:"totalSubtags"`
}
