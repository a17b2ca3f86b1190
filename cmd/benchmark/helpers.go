package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FrenchMajesty/shoewall/pkg/types"
)

const MAX_DATASET_SIZE = 500

// DatasetItem is one photo to replay with the profile to rank it for
type DatasetItem struct {
	ImagePath string
	Profile   types.UserProfile
	// Expected is the "brand model" the photo is known to contain, if any
	Expected string
}

// Result is the outcome of one replayed scan
type Result struct {
	ImagePath      string        `json:"image_path"`
	RequestID      string        `json:"request_id"`
	Outcome        string        `json:"outcome"`
	Candidates     []string      `json:"candidates"`
	Ranked         []string      `json:"ranked"`
	FallbackNeeded bool          `json:"fallback_needed"`
	ErrorCodes     []string      `json:"error_codes"`
	Expected       string        `json:"expected,omitempty"`
	ExpectedFound  bool          `json:"expected_found"`
	Latency        time.Duration `json:"latency"`
}

type BenchmarkMetrics struct {
	TotalDuration time.Duration   `json:"total_duration"`
	TotalScans    int             `json:"total_scans"`
	Outcomes      map[string]int  `json:"outcomes"`
	Fallbacks     int             `json:"fallbacks"`
	ErrorCodes    map[string]int  `json:"error_codes"`
	ExpectedTotal int             `json:"expected_total"`
	ExpectedHits  int             `json:"expected_hits"`
	Latency       []time.Duration `json:"latency"`
	P50Latency    time.Duration   `json:"p50_latency"`
	P95Latency    time.Duration   `json:"p95_latency"`
}

// summarize fills the aggregate fields from the per-scan results
func summarize(results []Result, total time.Duration) BenchmarkMetrics {
	m := BenchmarkMetrics{
		TotalDuration: total,
		TotalScans:    len(results),
		Outcomes:      map[string]int{},
		ErrorCodes:    map[string]int{},
	}
	for _, r := range results {
		m.Outcomes[r.Outcome]++
		if r.FallbackNeeded {
			m.Fallbacks++
		}
		for _, code := range r.ErrorCodes {
			m.ErrorCodes[code]++
		}
		if r.Expected != "" {
			m.ExpectedTotal++
			if r.ExpectedFound {
				m.ExpectedHits++
			}
		}
		m.Latency = append(m.Latency, r.Latency)
	}
	m.P50Latency = percentile(m.Latency, 0.50)
	m.P95Latency = percentile(m.Latency, 0.95)
	return m
}

func percentile(values []time.Duration, p float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]time.Duration{}, values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// saveToFile writes v as JSON to dir/<prefix>_<timestamp>_<random>.json
func saveToFile(dir, prefix string, v any) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	random := uuid.New().String()[:8]
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s_%s.json", prefix, timestamp, random))

	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return "", err
	}
	return filename, nil
}

// loadDataset reads image_path,arch_type,usage,weekly_mileage[,expected].
// Relative image paths are resolved against the CSV's directory.
func loadDataset(path string, limit int) ([]DatasetItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("dataset file must have at least a header and one row")
	}

	base := filepath.Dir(path)
	dataset := make([]DatasetItem, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) < 4 {
			continue
		}
		mileage, err := strconv.Atoi(strings.TrimSpace(record[3]))
		if err != nil {
			return nil, fmt.Errorf("row %d: weekly_mileage %q is not an integer", i+2, record[3])
		}
		item := DatasetItem{
			ImagePath: strings.TrimSpace(record[0]),
			Profile: types.UserProfile{
				ArchType:      types.ArchType(strings.TrimSpace(record[1])),
				Usage:         types.Usage(strings.TrimSpace(record[2])),
				WeeklyMileage: mileage,
			},
		}
		if !filepath.IsAbs(item.ImagePath) {
			item.ImagePath = filepath.Join(base, item.ImagePath)
		}
		if len(record) > 4 {
			item.Expected = strings.TrimSpace(record[4])
		}
		dataset = append(dataset, item)

		if limit > 0 && len(dataset) >= limit {
			break
		}
	}

	return dataset, nil
}
