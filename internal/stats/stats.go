// Package stats keeps local usage statistics for morph: one record per
// turn with its provider, outcome and latencies, persisted to
// ~/.morph/stats.json.
package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/arin/morph/internal/config"
)

const (
	fileName   = "stats.json"
	maxRecords = 1000
)

// Outcomes of a recorded turn.
const (
	OutcomeComplete  = "complete"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Record is one instrumented turn. Cancelled turns are recorded too.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Outcome      string    `json:"outcome"`
	Searched     bool      `json:"searched"`
	FirstEventMs int64     `json:"first_event_ms"`
	TotalMs      int64     `json:"total_ms"`
	Chars        int       `json:"chars"`
}

// Summary is the aggregated stats dashboard.
type Summary struct {
	TotalTurns        int            `json:"total_turns"`
	SuccessRate       float64        `json:"success_rate"`
	SearchRate        float64        `json:"search_rate"`
	AvgFirstEventMs   int64          `json:"avg_first_event_ms"`
	AvgTotalMs        int64          `json:"avg_total_ms"`
	OutcomeBreakdown  map[string]int `json:"outcome_breakdown"`
	ProviderBreakdown map[string]int `json:"provider_breakdown"`
	TopModels         []ModelCount   `json:"top_models"`
	TodayCount        int            `json:"today_count"`
	ThisWeekCount     int            `json:"this_week_count"`
}

// ModelCount pairs a model with its usage count.
type ModelCount struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

var fileMu sync.Mutex

func statsPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Save appends a record, keeping the most recent 1000.
func Save(r Record) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	r.Timestamp = time.Now()

	records, _ := loadAll()
	records = append(records, r)
	if len(records) > maxRecords {
		records = records[len(records)-maxRecords:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statsPath(), data, 0o600)
}

// LoadAll returns all stored records.
func LoadAll() ([]Record, error) {
	fileMu.Lock()
	defer fileMu.Unlock()
	return loadAll()
}

func loadAll() ([]Record, error) {
	data, err := os.ReadFile(statsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Summarize computes aggregated stats from all records. Latency averages
// only count completed turns.
func Summarize() (*Summary, error) {
	records, err := LoadAll()
	if err != nil {
		return nil, err
	}
	return summarize(records, time.Now()), nil
}

func summarize(records []Record, now time.Time) *Summary {
	s := &Summary{
		TotalTurns:        len(records),
		OutcomeBreakdown:  map[string]int{},
		ProviderBreakdown: map[string]int{},
	}
	if len(records) == 0 {
		return s
	}

	var firstTotal, totalTotal int64
	var completed, searched int
	modelFreq := map[string]int{}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)

	for _, r := range records {
		s.OutcomeBreakdown[r.Outcome]++
		if r.Provider != "" {
			s.ProviderBreakdown[r.Provider]++
		}
		if r.Model != "" {
			modelFreq[r.Model]++
		}
		if r.Searched {
			searched++
		}
		if r.Outcome == OutcomeComplete {
			completed++
			firstTotal += r.FirstEventMs
			totalTotal += r.TotalMs
		}
		if !r.Timestamp.Before(today) {
			s.TodayCount++
		}
		if r.Timestamp.After(weekAgo) {
			s.ThisWeekCount++
		}
	}

	s.SuccessRate = float64(completed) / float64(len(records)) * 100
	s.SearchRate = float64(searched) / float64(len(records)) * 100
	if completed > 0 {
		s.AvgFirstEventMs = firstTotal / int64(completed)
		s.AvgTotalMs = totalTotal / int64(completed)
	}
	s.TopModels = topN(modelFreq, 5)
	return s
}

// topN returns the n most used models, ties broken by name.
func topN(freq map[string]int, n int) []ModelCount {
	all := make([]ModelCount, 0, len(freq))
	for model, count := range freq {
		all = append(all, ModelCount{Model: model, Count: count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Model < all[j].Model
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}
