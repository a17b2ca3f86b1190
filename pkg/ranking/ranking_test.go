package ranking_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/google/uuid"

	"github.com/FrenchMajesty/shoewall/pkg/catalog"
	"github.com/FrenchMajesty/shoewall/pkg/ranking"
	"github.com/FrenchMajesty/shoewall/pkg/schema"
	"github.com/FrenchMajesty/shoewall/pkg/types"
	"github.com/FrenchMajesty/shoewall/pkg/vision"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

var roadRunner = types.UserProfile{ArchType: types.ArchNormal, Usage: types.UsageRoad, WeeklyMileage: 20}

func demoCatalog(t *testing.T) catalog.ByName {
	t.Helper()
	c, err := catalog.FromSpecs(catalog.DemoSpecs())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func mapped(brand, model string, conf float64) types.VisionCandidate {
	return types.VisionCandidate{RawLabel: brand + " " + model, Brand: types.StringPtr(brand), Model: types.StringPtr(model), Confidence: conf}
}

func requireFallback(t *testing.T, r types.RecommendationsResult, code string) {
	t.Helper()
	if !r.FallbackNeeded {
		t.Fatal("expected fallback_needed")
	}
	if len(r.Ranked) != 0 || len(r.Avoid) != 0 {
		t.Errorf("expected empty ranked/avoid, got %d/%d", len(r.Ranked), len(r.Avoid))
	}
	if r.Ranked == nil || r.Avoid == nil {
		t.Error("ranked and avoid must be empty slices, not nil")
	}
	if len(r.Errors) != 1 || r.Errors[0].Code != code {
		t.Fatalf("expected exactly one %s error, got %+v", code, r.Errors)
	}
}

// Detection mock feeding ranking mock end to end.
func TestScenarioA_MockPipeline(t *testing.T) {
	ctx := context.Background()
	v := vision.New(vision.Config{Mock: true, Logger: quietLog}).Run(ctx, []byte{1}, "image/png")
	stage := ranking.New(ranking.Config{Mock: true, Logger: quietLog})

	r := stage.Run(ctx, v.RequestID, roadRunner, v.Candidates, demoCatalog(t), v.Failed())

	if r.FallbackNeeded {
		t.Fatalf("unexpected fallback: %+v", r.Errors)
	}
	if r.RequestID != v.RequestID {
		t.Error("ranking must echo the vision request id")
	}
	wantModels := []string{"Nike Pegasus 40", "Brooks Ghost 15", "Hoka Clifton 9"}
	wantScores := []float64{90, 82, 74}
	if len(r.Ranked) != 3 {
		t.Fatalf("expected 3 ranked, got %d", len(r.Ranked))
	}
	for i, rec := range r.Ranked {
		if rec.Model != wantModels[i] || rec.MatchScore != wantScores[i] {
			t.Errorf("rank %d: got %s %.0f, want %s %.0f", i, rec.Model, rec.MatchScore, wantModels[i], wantScores[i])
		}
		if rec.Confidence != v.Candidates[i].Confidence {
			t.Errorf("rank %d: confidence should come from detection", i)
		}
		if rec.Specs.Terrain == nil || *rec.Specs.Terrain != "road" {
			t.Errorf("rank %d: expected catalog specs, got %+v", i, rec.Specs)
		}
		if len(rec.Why) == 0 {
			t.Errorf("rank %d: expected reasons", i)
		}
	}
	if err := (schema.Ranking{}).ValidateResult(r); err != nil {
		t.Errorf("result should validate: %v", err)
	}
}

func TestScenarioB_VisionFailed(t *testing.T) {
	profiles := []types.UserProfile{
		roadRunner,
		{ArchType: "bogus", Usage: "swim", WeeklyMileage: -4},
	}
	for _, mock := range []bool{true, false} {
		for _, p := range profiles {
			stage := ranking.New(ranking.Config{Mock: mock, Logger: quietLog})
			r := stage.Run(context.Background(), uuid.NewString(), p, []types.VisionCandidate{mapped("Nike", "Pegasus 40", 0.9)}, demoCatalog(t), true)
			requireFallback(t, r, types.CodeVisionUnavailable)
		}
	}
}

func TestRun_LiveNotEnabled(t *testing.T) {
	stage := ranking.New(ranking.Config{Logger: quietLog})
	r := stage.Run(context.Background(), uuid.NewString(), roadRunner, []types.VisionCandidate{mapped("Nike", "Pegasus 40", 0.9)}, demoCatalog(t), false)

	requireFallback(t, r, types.CodeRankingNotEnabled)
	if err := (schema.Ranking{}).ValidateResult(r); err != nil {
		t.Errorf("live fallback should validate: %v", err)
	}
}

func TestRun_NoMappedCandidates(t *testing.T) {
	stage := ranking.New(ranking.Config{Mock: true, Logger: quietLog})
	cands := []types.VisionCandidate{
		{RawLabel: "blue shoe", Confidence: 0.4},
		{RawLabel: "Nike something", Brand: types.StringPtr("Nike"), Confidence: 0.5},
		{RawLabel: "empty model", Brand: types.StringPtr("Hoka"), Model: types.StringPtr(""), Confidence: 0.5},
	}
	r := stage.Run(context.Background(), uuid.NewString(), roadRunner, cands, demoCatalog(t), false)

	requireFallback(t, r, types.CodeRankingNoMapped)
}

func TestRun_DedupesAndKeepsDiscoveryOrder(t *testing.T) {
	stage := ranking.New(ranking.Config{Mock: true, Logger: quietLog})
	cands := []types.VisionCandidate{
		{RawLabel: "unmapped", Confidence: 0.99},
		mapped("Hoka", "Clifton 9", 0.5),
		mapped("Hoka", "Clifton 9", 0.95),
		mapped("Nike", "Pegasus 40", 0.6),
	}
	r := stage.Run(context.Background(), uuid.NewString(), roadRunner, cands, demoCatalog(t), false)

	if len(r.Ranked) != 2 {
		t.Fatalf("expected 2 ranked, got %d", len(r.Ranked))
	}
	if r.Ranked[0].Model != "Hoka Clifton 9" || r.Ranked[0].Confidence != 0.5 {
		t.Errorf("expected first occurrence of Hoka first, got %+v", r.Ranked[0])
	}
	if r.Ranked[1].Model != "Nike Pegasus 40" || r.Ranked[1].MatchScore != 82 {
		t.Errorf("unexpected second rank %+v", r.Ranked[1])
	}
}

func TestRun_UnknownShoeHasNullSpecs(t *testing.T) {
	stage := ranking.New(ranking.Config{Mock: true, Logger: quietLog})
	r := stage.Run(context.Background(), uuid.NewString(), roadRunner, []types.VisionCandidate{mapped("Adidas", "Boston 12", 0.7)}, demoCatalog(t), false)

	if r.FallbackNeeded || len(r.Ranked) != 1 {
		t.Fatalf("unexpected result %+v", r)
	}
	if r.Ranked[0].Specs != (types.SpecSummary{}) {
		t.Errorf("expected every spec field null, got %+v", r.Ranked[0].Specs)
	}
}

func TestRun_AvoidsClashingExtras(t *testing.T) {
	stage := ranking.New(ranking.Config{Mock: true, Logger: quietLog})
	cands := []types.VisionCandidate{
		mapped("Nike", "Pegasus 40", 0.9),
		mapped("Brooks", "Ghost 15", 0.8),
		mapped("Hoka", "Clifton 9", 0.7),
		mapped("Salomon", "Speedcross 6", 0.6),
		mapped("Asics", "Gel-Kayano 30", 0.5),
	}
	r := stage.Run(context.Background(), uuid.NewString(), roadRunner, cands, demoCatalog(t), false)

	if len(r.Ranked) != ranking.MaxMockRanked {
		t.Fatalf("expected %d ranked, got %d", ranking.MaxMockRanked, len(r.Ranked))
	}
	if len(r.Avoid) != 1 || r.Avoid[0].Model != "Salomon Speedcross 6" || r.Avoid[0].Reason == "" {
		t.Errorf("expected the trail shoe in avoid, got %+v", r.Avoid)
	}
}

func TestRun_InvalidProfile(t *testing.T) {
	stage := ranking.New(ranking.Config{Mock: true, Logger: quietLog})
	p := types.UserProfile{ArchType: types.ArchNormal, Usage: types.UsageRoad, WeeklyMileage: -1}
	r := stage.Run(context.Background(), uuid.NewString(), p, []types.VisionCandidate{mapped("Nike", "Pegasus 40", 0.9)}, demoCatalog(t), false)

	requireFallback(t, r, types.CodeRankingSchemaInvalid)
}

func TestRun_SelfValidationFailure(t *testing.T) {
	bad := catalog.ByName{"Nike Pegasus 40": {Brand: "Nike", Model: "Pegasus 40", Terrain: "road", Stability: "wobbly", Cushion: types.CushionHigh}}
	stage := ranking.New(ranking.Config{Mock: true, Logger: quietLog})

	r := stage.Run(context.Background(), uuid.NewString(), roadRunner, []types.VisionCandidate{mapped("Nike", "Pegasus 40", 0.9)}, bad, false)
	requireFallback(t, r, types.CodeRankingSchemaInvalid)

	r = stage.Run(context.Background(), "not-a-uuid", roadRunner, []types.VisionCandidate{mapped("Nike", "Pegasus 40", 0.9)}, demoCatalog(t), false)
	requireFallback(t, r, types.CodeRankingSchemaInvalid)
}

func TestRun_MockOutputAlwaysValidates(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	archs := []types.ArchType{types.ArchFlat, types.ArchNormal, types.ArchHigh, types.ArchUnknown}
	usages := []types.Usage{types.UsageRoad, types.UsageTrail, types.UsageTreadmill, types.UsageCasual, types.UsageRacing}
	specs := catalog.DemoSpecs()
	byName := demoCatalog(t)
	stage := ranking.New(ranking.Config{Mock: true, Logger: quietLog})

	for i := 0; i < 300; i++ {
		p := types.UserProfile{
			ArchType:      archs[rng.Intn(len(archs))],
			Usage:         usages[rng.Intn(len(usages))],
			WeeklyMileage: rng.Intn(80),
		}
		n := rng.Intn(10)
		cands := make([]types.VisionCandidate, n)
		for j := range cands {
			switch rng.Intn(3) {
			case 0:
				s := specs[rng.Intn(len(specs))]
				cands[j] = mapped(s.Brand, s.Model, rng.Float64())
			case 1:
				cands[j] = mapped("Brand", fmt.Sprintf("Model %d", rng.Intn(5)), rng.Float64())
			default:
				cands[j] = types.VisionCandidate{RawLabel: "unlabeled", Confidence: rng.Float64()}
			}
		}

		r := stage.Run(context.Background(), uuid.NewString(), p, cands, byName, false)
		if err := (schema.Ranking{}).ValidateResult(r); err != nil {
			t.Fatalf("iteration %d: invalid mock output: %v", i, err)
		}
		if r.FallbackNeeded && r.HasError(types.CodeRankingSchemaInvalid) {
			t.Fatalf("iteration %d: mock output failed self-validation: %+v", i, r.Errors)
		}
		for k := 1; k < len(r.Ranked); k++ {
			if r.Ranked[k].MatchScore >= r.Ranked[k-1].MatchScore {
				t.Fatalf("iteration %d: scores must strictly decrease", i)
			}
		}
	}
}
