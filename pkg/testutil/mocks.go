package testutil

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/FrenchMajesty/shoewall/internal/store"
	"github.com/FrenchMajesty/shoewall/pkg/types"
	"github.com/FrenchMajesty/shoewall/pkg/vision"
)

// MockDetectionClient is a mock implementation of vision.DetectionClient
type MockDetectionClient struct {
	DetectFunc func(ctx context.Context, req vision.DetectionRequest) (string, error)

	// Response is returned when DetectFunc is nil
	Response string

	mu          sync.Mutex
	CallCount   int
	LastRequest vision.DetectionRequest
}

func (m *MockDetectionClient) Detect(ctx context.Context, req vision.DetectionRequest) (string, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastRequest = req
	m.mu.Unlock()

	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, req)
	}
	return m.Response, nil
}

// Calls returns the number of Detect calls so far
func (m *MockDetectionClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient for testing
type MockEmbeddingClient struct {
	GenerateEmbeddingFunc func(ctx context.Context, text string) ([]float32, error)
	mu                    sync.Mutex
	CallCount             int
	LastText              string
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastText = text
	m.mu.Unlock()

	if m.GenerateEmbeddingFunc != nil {
		return m.GenerateEmbeddingFunc(ctx, text)
	}
	return LetterEmbedding(text), nil
}

// LetterEmbedding is a deterministic bag-of-letters vector. Texts that share
// most letters end up close in cosine distance.
func LetterEmbedding(text string) []float32 {
	v := make([]float32, 36)
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z':
			v[r-'a']++
		case r >= 'A' && r <= 'Z':
			v[r-'A']++
		case r >= '0' && r <= '9':
			v[26+r-'0']++
		}
	}
	return v
}

type storedVector struct {
	Vector   []float32
	Metadata map[string]any
}

// MockVectorClient is an in-memory vector index. Search ranks stored vectors
// by cosine similarity unless SearchFunc is set.
type MockVectorClient struct {
	SearchFunc func(ctx context.Context, vector []float32, topK int) ([]types.VectorMatch, error)
	UpsertFunc func(ctx context.Context, id string, vector []float32, metadata map[string]any) error

	mu          sync.Mutex
	CallCount   int
	UpsertCount int
	Storage     map[string]storedVector
}

func NewMockVectorClient() *MockVectorClient {
	return &MockVectorClient{
		Storage: make(map[string]storedVector),
	}
}

func (m *MockVectorClient) Search(ctx context.Context, vector []float32, topK int) ([]types.VectorMatch, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, vector, topK)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	matches := make([]types.VectorMatch, 0, len(m.Storage))
	for id, sv := range m.Storage {
		matches = append(matches, types.VectorMatch{ID: id, Score: cosine(vector, sv.Vector), Metadata: sv.Metadata})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MockVectorClient) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	if m.UpsertFunc != nil {
		if err := m.UpsertFunc(ctx, id, vector, metadata); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCount++
	if m.Storage == nil {
		m.Storage = make(map[string]storedVector)
	}
	m.Storage[id] = storedVector{Vector: vector, Metadata: metadata}
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// MockScanStore records saved scans, or fails through SaveScanFunc
type MockScanStore struct {
	SaveScanFunc func(ctx context.Context, s store.Scan) error

	mu    sync.Mutex
	Saved []store.Scan
}

func (m *MockScanStore) SaveScan(ctx context.Context, s store.Scan) error {
	if m.SaveScanFunc != nil {
		if err := m.SaveScanFunc(ctx, s); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, s)
	return nil
}

// ErrUnavailable is a generic failure for mocks
var ErrUnavailable = errors.New("service unavailable")
