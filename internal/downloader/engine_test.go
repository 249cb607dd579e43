package downloader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/pkg/media"
	"mediagrab/pkg/storage"
)

// mockFetcher serves canned payloads and records call pressure.
type mockFetcher struct {
	mu       sync.Mutex
	payloads map[string][]byte
	errs     map[string]error
	delay    time.Duration

	calls       int64
	inFlight    int64
	maxInFlight int64
}

func (m *mockFetcher) FetchBytes(ctx context.Context, mediaURL string) ([]byte, error) {
	atomic.AddInt64(&m.calls, 1)
	current := atomic.AddInt64(&m.inFlight, 1)
	defer atomic.AddInt64(&m.inFlight, -1)

	m.mu.Lock()
	if current > m.maxInFlight {
		m.maxInFlight = current
	}
	err := m.errs[mediaURL]
	payload := m.payloads[mediaURL]
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (m *mockFetcher) callCount() int64 {
	return atomic.LoadInt64(&m.calls)
}

func newTestStore(t *testing.T) *storage.Manager {
	t.Helper()
	mgr, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	return mgr
}

func testItem(postID string, ordinal int, url string) media.Item {
	return media.Item{
		SourceURL: url,
		Type:      media.TypeImage,
		PostID:    postID,
		Ordinal:   ordinal,
		Platform:  "instagram",
		Username:  "someone",
		Ext:       "jpg",
	}
}

func TestEngineDownloadsAllItems(t *testing.T) {
	fetcher := &mockFetcher{payloads: map[string][]byte{
		"https://cdn.example.com/a.jpg": []byte("payload-a"),
		"https://cdn.example.com/b.jpg": []byte("payload-b"),
		"https://cdn.example.com/c.jpg": []byte("payload-c"),
	}}
	store := newTestStore(t)
	engine := NewEngine(4, fetcher, store, true, nil)

	items := []media.Item{
		testItem("p1", 0, "https://cdn.example.com/a.jpg"),
		testItem("p1", 1, "https://cdn.example.com/b.jpg"),
		testItem("p2", 0, "https://cdn.example.com/c.jpg"),
	}
	outcomes, stats := engine.Run(context.Background(), items)

	require.Len(t, outcomes, 3)
	assert.Equal(t, 3, stats.Success)
	assert.Equal(t, 3, stats.Total())
	for _, o := range outcomes {
		assert.Equal(t, StatusSuccess, o.Status)
		assert.True(t, store.Exists(o.Path), "expected file at %s", o.Path)
		assert.Positive(t, o.Size)
	}
}

func TestEngineDeduplicatesIdenticalContent(t *testing.T) {
	// Two different URLs serving byte-identical content must resolve to
	// exactly one write regardless of scheduling order.
	for i := 0; i < 20; i++ {
		fetcher := &mockFetcher{payloads: map[string][]byte{
			"https://cdn.example.com/one.jpg": []byte("same-bytes"),
			"https://cdn.example.com/two.jpg": []byte("same-bytes"),
		}}
		store := newTestStore(t)
		engine := NewEngine(2, fetcher, store, true, nil)

		items := []media.Item{
			testItem("p1", 0, "https://cdn.example.com/one.jpg"),
			testItem("p2", 0, "https://cdn.example.com/two.jpg"),
		}
		_, stats := engine.Run(context.Background(), items)

		assert.Equal(t, 1, stats.Success)
		assert.Equal(t, 1, stats.SkippedDuplicate)
	}
}

func TestEngineSkipsExistingFilesWithoutFetching(t *testing.T) {
	fetcher := &mockFetcher{payloads: map[string][]byte{
		"https://cdn.example.com/a.jpg": []byte("payload-a"),
		"https://cdn.example.com/b.jpg": []byte("payload-b"),
	}}
	store := newTestStore(t)
	engine := NewEngine(2, fetcher, store, true, nil)

	items := []media.Item{
		testItem("p1", 0, "https://cdn.example.com/a.jpg"),
		testItem("p1", 1, "https://cdn.example.com/b.jpg"),
	}

	_, first := engine.Run(context.Background(), items)
	require.Equal(t, 2, first.Success)
	require.EqualValues(t, 2, fetcher.callCount())

	_, second := engine.Run(context.Background(), items)
	assert.Equal(t, 2, second.SkippedExisting)
	assert.Equal(t, 0, second.Success)
	assert.EqualValues(t, 2, fetcher.callCount(), "existing files must not be fetched again")
}

func TestEngineRespectsConcurrencyLimit(t *testing.T) {
	payloads := make(map[string][]byte)
	items := make([]media.Item, 0, 20)
	for i := 0; i < 20; i++ {
		url := fmt.Sprintf("https://cdn.example.com/%d.jpg", i)
		payloads[url] = []byte(fmt.Sprintf("payload-%d", i))
		items = append(items, testItem(fmt.Sprintf("p%d", i), 0, url))
	}
	fetcher := &mockFetcher{payloads: payloads, delay: 10 * time.Millisecond}
	store := newTestStore(t)
	engine := NewEngine(3, fetcher, store, true, nil)

	_, stats := engine.Run(context.Background(), items)

	assert.Equal(t, 20, stats.Success)
	assert.LessOrEqual(t, fetcher.maxInFlight, int64(3))
}

func TestEngineIsolatesFailures(t *testing.T) {
	fetcher := &mockFetcher{
		payloads: map[string][]byte{
			"https://cdn.example.com/ok1.jpg": []byte("ok-1"),
			"https://cdn.example.com/ok2.jpg": []byte("ok-2"),
		},
		errs: map[string]error{
			"https://cdn.example.com/bad.jpg": fmt.Errorf("connection reset"),
		},
	}
	store := newTestStore(t)
	engine := NewEngine(2, fetcher, store, true, nil)

	items := []media.Item{
		testItem("p1", 0, "https://cdn.example.com/ok1.jpg"),
		testItem("p2", 0, "https://cdn.example.com/bad.jpg"),
		testItem("p3", 0, "https://cdn.example.com/ok2.jpg"),
	}
	outcomes, stats := engine.Run(context.Background(), items)

	assert.Equal(t, 2, stats.Success)
	assert.Equal(t, 1, stats.Failed)
	for _, o := range outcomes {
		if o.Status == StatusFailed {
			assert.Error(t, o.Err)
			assert.Equal(t, "p2", o.Item.PostID)
		}
	}
}

func TestEngineRedownloadsWhenSkipDisabled(t *testing.T) {
	fetcher := &mockFetcher{payloads: map[string][]byte{
		"https://cdn.example.com/a.jpg": []byte("payload-a"),
	}}
	store := newTestStore(t)
	engine := NewEngine(1, fetcher, store, false, nil)

	items := []media.Item{testItem("p1", 0, "https://cdn.example.com/a.jpg")}

	_, first := engine.Run(context.Background(), items)
	require.Equal(t, 1, first.Success)

	_, second := engine.Run(context.Background(), items)
	assert.Equal(t, 1, second.Success)
	assert.EqualValues(t, 2, fetcher.callCount())
}

func TestEngineCancelledContextFailsRemaining(t *testing.T) {
	fetcher := &mockFetcher{payloads: map[string][]byte{
		"https://cdn.example.com/a.jpg": []byte("payload-a"),
	}}
	store := newTestStore(t)
	engine := NewEngine(1, fetcher, store, true, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []media.Item{
		testItem("p1", 0, "https://cdn.example.com/a.jpg"),
		testItem("p2", 0, "https://cdn.example.com/a.jpg"),
	}
	outcomes, stats := engine.Run(ctx, items)

	require.Len(t, outcomes, 2)
	assert.Equal(t, 2, stats.Failed)
}

func TestStatsMerge(t *testing.T) {
	a := Stats{Success: 2, SkippedExisting: 1}
	b := Stats{Success: 1, SkippedDuplicate: 3, Failed: 1}

	merged := a.Merge(b)
	assert.Equal(t, Stats{Success: 3, SkippedExisting: 1, SkippedDuplicate: 3, Failed: 1}, merged)
	assert.Equal(t, 8, merged.Total())
}
