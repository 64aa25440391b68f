// Package arrivals fetches bus arrival estimates for one stop from the TfL
// unified API and ages them between fetches.
package arrivals

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

const stopArrivalsAPI = "https://api.tfl.gov.uk/StopPoint/%s/Arrivals"

// Arrival is one expected bus, walk-time already subtracted.
type Arrival struct {
	Line string `json:"line"`
	Mins int    `json:"mins"`
}

// Record is the result of one fetch.  It is replaced wholesale on every
// fetch, never merged.  The zero value means "never fetched".
type Record struct {
	Arrivals  []Arrival `json:"arrivals"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Project ages the record to now by subtracting elapsed whole minutes.
// Arrivals that have gone negative are dropped; the rest keep their order,
// which stays ascending because every value moves by the same amount.
func Project(r Record, now time.Time) []Arrival {
	delta := int(now.Sub(r.FetchedAt) / time.Minute)
	result := make([]Arrival, 0, len(r.Arrivals))
	for _, a := range r.Arrivals {
		mins := a.Mins - delta
		if mins < 0 {
			continue
		}
		result = append(result, Arrival{Line: a.Line, Mins: mins})
	}
	return result
}

// Fetcher produces the current arrivals for the configured stop.  An error is
// treated the same as zero arrivals by the caller; it is only distinguished
// for logging and metrics.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Arrival, error)
}

// StopFetcher fetches arrivals for one stop, filtered to a set of routes and
// reduced by the walking time to the stop.
type StopFetcher struct {
	c      *http.Client
	url    func(stopID string) string
	stopID string
	routes map[string]bool
	walk   int
}

// NewStopFetcher returns a StopFetcher for the given stop.  walk is the
// walking time to the stop, in minutes; buses that would arrive before you
// could get there are dropped.
func NewStopFetcher(stopID string, routes []string, walk int) *StopFetcher {
	filter := make(map[string]bool, len(routes))
	for _, r := range routes {
		filter[r] = true
	}
	return &StopFetcher{
		c: &http.Client{Timeout: time.Duration(5) * time.Second},
		url: func(stopID string) string {
			return fmt.Sprintf(stopArrivalsAPI, stopID)
		},
		stopID: stopID,
		routes: filter,
		walk:   walk,
	}
}

type tflArrival struct {
	LineName      string
	TimeToStation int // seconds
}

// Fetch returns the walk-adjusted arrivals for the configured routes, sorted
// soonest first.
func (sf *StopFetcher) Fetch(ctx context.Context) ([]Arrival, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sf.url(sf.stopID), nil)
	if err != nil {
		return nil, fmt.Errorf("building arrivals request: %w", err)
	}
	resp, err := sf.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("problem fetching arrivals from API: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("problem reading arrivals response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arrivals API returned status %d", resp.StatusCode)
	}
	tflArrivals := []tflArrival{}
	if err := json.Unmarshal(body, &tflArrivals); err != nil {
		return nil, fmt.Errorf("problem parsing arrivals response from TfL: %w", err)
	}
	result := make([]Arrival, 0, len(tflArrivals))
	for _, a := range tflArrivals {
		if !sf.routes[a.LineName] {
			continue
		}
		mins := a.TimeToStation/60 - sf.walk
		if mins < 0 {
			continue
		}
		result = append(result, Arrival{Line: a.LineName, Mins: mins})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Mins < result[j].Mins
	})
	return result, nil
}
