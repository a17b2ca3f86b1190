package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/FrenchMajesty/shoewall/internal/app"
	"github.com/FrenchMajesty/shoewall/internal/config"
	"github.com/FrenchMajesty/shoewall/internal/store"
	"github.com/FrenchMajesty/shoewall/pkg/analysis"
	"github.com/FrenchMajesty/shoewall/pkg/catalog"
)

// Replays a CSV of shoe wall photos through the full scan pipeline and
// writes per-scan results plus aggregate metrics as JSON.
func main() {
	datasetPath := flag.String("dataset", "", "CSV with image_path,arch_type,usage,weekly_mileage[,expected]")
	limit := flag.Int("limit", MAX_DATASET_SIZE, "maximum rows to replay")
	outDir := flag.String("out", ".", "directory for results and metrics files")
	flag.Parse()

	if *datasetPath == "" {
		log.Fatal("-dataset is required")
	}

	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	dataset, err := loadDataset(*datasetPath, *limit)
	if err != nil {
		log.Fatal(err)
	}

	// Scans are not persisted; only the catalog matters here.
	db := store.NewMemory(catalog.DemoSpecs())
	svc, stage, err := app.Service(cfg, db, logger)
	if err != nil {
		log.Fatal(err)
	}
	logger.Info("benchmark starting", "rows", len(dataset), "vision_mock", stage.Mocked(), "ranking_mock", cfg.RankingMock)

	results, total := replay(context.Background(), svc, db, dataset, logger)
	metrics := summarize(results, total)

	resultsFile, err := saveToFile(*outDir, "results", results)
	if err != nil {
		log.Fatal(err)
	}
	metricsFile, err := saveToFile(*outDir, "metrics", metrics)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Scans: %d  Fallbacks: %d  Outcomes: %v\n", metrics.TotalScans, metrics.Fallbacks, metrics.Outcomes)
	if metrics.ExpectedTotal > 0 {
		fmt.Printf("Expected shoe found: %d/%d\n", metrics.ExpectedHits, metrics.ExpectedTotal)
	}
	fmt.Printf("Latency p50=%v p95=%v total=%v\n", metrics.P50Latency, metrics.P95Latency, metrics.TotalDuration)
	fmt.Printf("Wrote %s and %s\n", resultsFile, metricsFile)
}

// replay runs every item sequentially so latencies are comparable
func replay(ctx context.Context, svc *analysis.Service, profiles *store.Memory, dataset []DatasetItem, logger *slog.Logger) ([]Result, time.Duration) {
	startTime := time.Now()
	results := make([]Result, 0, len(dataset))

	for i, item := range dataset {
		image, err := os.ReadFile(item.ImagePath)
		if err != nil {
			logger.Warn("skipping unreadable image", "path", item.ImagePath, "error", err)
			continue
		}

		userID := fmt.Sprintf("bench-%d", i)
		if err := profiles.UpsertProfile(ctx, userID, item.Profile); err != nil {
			logger.Warn("skipping row with unusable profile", "path", item.ImagePath, "error", err)
			continue
		}

		scanStart := time.Now()
		report, err := svc.Analyze(ctx, analysis.Request{
			UserID:   userID,
			Image:    image,
			MimeType: http.DetectContentType(image),
		})
		if report == nil {
			logger.Warn("scan failed", "path", item.ImagePath, "error", err)
			continue
		}

		results = append(results, toResult(item, report, time.Since(scanStart)))
	}

	return results, time.Since(startTime)
}

func toResult(item DatasetItem, report *analysis.Report, latency time.Duration) Result {
	r := Result{
		ImagePath:      item.ImagePath,
		RequestID:      report.Vision.RequestID,
		Outcome:        string(report.Outcome),
		Candidates:     []string{},
		Ranked:         []string{},
		FallbackNeeded: report.Recommendations.FallbackNeeded,
		ErrorCodes:     []string{},
		Expected:       item.Expected,
		Latency:        latency,
	}
	for _, c := range report.Vision.Candidates {
		name := c.DisplayName()
		r.Candidates = append(r.Candidates, name)
		if item.Expected != "" && catalog.NormalizeKey(name) == catalog.NormalizeKey(item.Expected) {
			r.ExpectedFound = true
		}
	}
	for _, rec := range report.Recommendations.Ranked {
		r.Ranked = append(r.Ranked, rec.Model)
	}
	for _, e := range report.Vision.Errors {
		r.ErrorCodes = append(r.ErrorCodes, e.Code)
	}
	for _, e := range report.Recommendations.Errors {
		r.ErrorCodes = append(r.ErrorCodes, e.Code)
	}
	return r
}
