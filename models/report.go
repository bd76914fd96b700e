package models

import "time"

// Stage names the step of the pipeline an item failed in.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageParse    Stage = "parse"
	StageStore    Stage = "store"
	StageCanceled Stage = "canceled"
)

// Failure records why a detail URL did not make it into the store.
type Failure struct {
	URL    string `json:"url"`
	Stage  Stage  `json:"stage"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// CrawlReport holds the overall result of one crawl run.
type CrawlReport struct {
	RunID     string    `json:"run_id"`
	SeedURL   string    `json:"seed_url"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	ListingPages int `json:"listing_pages"`
	Discovered   int `json:"discovered"`
	Duplicates   int `json:"duplicates"`
	Skipped      int `json:"skipped"`

	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Retries   int `json:"retries"`

	Failures     []Failure      `json:"failures"`
	Warnings     []Failure      `json:"warnings"`
	ErrorsByType map[string]int `json:"errors_by_type"`

	// Truncated is set when the listing still advertised a next page at the
	// configured page cap.
	Truncated bool `json:"truncated"`
	Canceled  bool `json:"canceled"`
}

// Duration is the wall time of the run.
func (r *CrawlReport) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// SuccessRate is the percentage of attempted items that were stored.
func (r *CrawlReport) SuccessRate() float64 {
	if r.Attempted == 0 {
		return 0
	}
	return float64(r.Succeeded) / float64(r.Attempted) * 100
}
