package aggregator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/jobtrail/internal/jobsource"
	"github.com/hitoshi/jobtrail/internal/jobsource/adzuna"
	"github.com/hitoshi/jobtrail/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// mockSource はjobsource.Sourceのテスト用モック。
type mockSource struct {
	name     string
	searchFn func(ctx context.Context, q jobsource.Query) ([]model.Job, error)
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Search(ctx context.Context, q jobsource.Query) ([]model.Job, error) {
	return m.searchFn(ctx, q)
}

// mockMetrics はソース呼び出し結果を記録するモック。
type mockMetrics struct {
	mu       sync.Mutex
	success  []string
	failure  []string
	latency  int
	ingested int
}

func (m *mockMetrics) RecordSourceSuccess(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success = append(m.success, source)
}

func (m *mockMetrics) RecordSourceFailure(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = append(m.failure, source)
}

func (m *mockMetrics) RecordSourceLatency(string, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency++
}

func (m *mockMetrics) RecordJobsIngested(count int)     { m.ingested += count }
func (m *mockMetrics) RecordInteractionRecorded(string) {}
func (m *mockMetrics) RecordDocumentExported(string)    {}
func (m *mockMetrics) RecordHTTPStatus(int)             {}

// mockStore はJobStoreのテスト用モック。
type mockStore struct {
	ingestFn func(ctx context.Context, jobs []model.Job) ([]model.Job, error)
}

func (m *mockStore) Ingest(ctx context.Context, jobs []model.Job) ([]model.Job, error) {
	return m.ingestFn(ctx, jobs)
}

func staticSource(name string, jobs ...model.Job) *mockSource {
	return &mockSource{
		name: name,
		searchFn: func(context.Context, jobsource.Query) ([]model.Job, error) {
			return jobs, nil
		},
	}
}

func job(platform, id string) model.Job {
	return model.Job{PlatformName: platform, ExternalJobID: id, Title: id}
}

// TestFetchJobs_FailingSource_ReturnsEmpty は非2xxを返すソースのみの場合に空の結果になることを検証する。
func TestFetchJobs_FailingSource_ReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	src := adzuna.NewClient(server.Client(), logger, "id", "key", "us", server.URL)
	mc := &mockMetrics{}
	g := NewGateway([]jobsource.Source{src}, mc, logger, 0, time.Second)

	jobs := g.FetchJobs(context.Background(), Params{SearchText: "go"})

	if jobs == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(jobs) != 0 {
		t.Errorf("len(jobs) = %d, want 0", len(jobs))
	}
	if len(mc.failure) != 1 || mc.failure[0] != "adzuna" {
		t.Errorf("failure metrics = %v, want [adzuna]", mc.failure)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"source":"adzuna"`)) {
		t.Errorf("expected source in log, got %s", buf.String())
	}
}

// TestFetchJobs_ConcatenatesInSourceOrderAndDedupes はソース順の連結と重複除去を検証する。
func TestFetchJobs_ConcatenatesInSourceOrderAndDedupes(t *testing.T) {
	slow := &mockSource{
		name: "slow",
		searchFn: func(context.Context, jobsource.Query) ([]model.Job, error) {
			time.Sleep(20 * time.Millisecond)
			return []model.Job{job("a", "1"), job("a", "2"), job("a", "1")}, nil
		},
	}
	fast := staticSource("fast", job("b", "1"), job("a", "2"))

	var buf bytes.Buffer
	g := NewGateway([]jobsource.Source{slow, fast}, &mockMetrics{}, newTestLogger(&buf), 0, 0)

	jobs := g.FetchJobs(context.Background(), Params{})

	want := []string{"a/1", "a/2", "b/1"}
	if len(jobs) != len(want) {
		t.Fatalf("len(jobs) = %d, want %d", len(jobs), len(want))
	}
	for i, j := range jobs {
		if got := j.PlatformName + "/" + j.ExternalJobID; got != want[i] {
			t.Errorf("jobs[%d] = %s, want %s", i, got, want[i])
		}
	}
}

// TestFetchJobs_PartialFailure_KeepsOtherSources は一部のソースの失敗が他のソースに影響しないことを検証する。
func TestFetchJobs_PartialFailure_KeepsOtherSources(t *testing.T) {
	broken := &mockSource{
		name: "broken",
		searchFn: func(context.Context, jobsource.Query) ([]model.Job, error) {
			return nil, errors.New("connection refused")
		},
	}
	mc := &mockMetrics{}
	var buf bytes.Buffer
	g := NewGateway([]jobsource.Source{broken, staticSource("ok", job("ok", "1"))}, mc, newTestLogger(&buf), 0, 0)

	jobs := g.FetchJobs(context.Background(), Params{})

	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}
	if len(mc.success) != 1 || len(mc.failure) != 1 || mc.latency != 2 {
		t.Errorf("metrics success=%v failure=%v latency=%d", mc.success, mc.failure, mc.latency)
	}
}

// TestFetchJobs_SourceTimeout はソースごとのタイムアウトでコンテキストがキャンセルされることを検証する。
func TestFetchJobs_SourceTimeout(t *testing.T) {
	hanging := &mockSource{
		name: "hanging",
		searchFn: func(ctx context.Context, _ jobsource.Query) ([]model.Job, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	var buf bytes.Buffer
	g := NewGateway([]jobsource.Source{hanging}, nil, newTestLogger(&buf), 0, 20*time.Millisecond)

	done := make(chan []model.Job)
	go func() { done <- g.FetchJobs(context.Background(), Params{}) }()

	select {
	case jobs := <-done:
		if len(jobs) != 0 {
			t.Errorf("len(jobs) = %d, want 0", len(jobs))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("FetchJobs did not return after source timeout")
	}
}

// TestBuildQuery_AppliesDefaults はデフォルト値と掲載日の変換を検証する。
func TestBuildQuery_AppliesDefaults(t *testing.T) {
	var buf bytes.Buffer
	g := NewGateway(nil, nil, newTestLogger(&buf), 25, 0)

	tests := []struct {
		name   string
		params Params
		want   jobsource.Query
	}{
		{
			name:   "defaults",
			params: Params{},
			want:   jobsource.Query{Page: 1, PageSize: 25},
		},
		{
			name:   "explicit values",
			params: Params{SearchText: " go ", JobType: "contract", Location: "Berlin", DatePosted: "Last week", Page: 3, PageSize: 10},
			want:   jobsource.Query{SearchText: "go", JobType: model.JobTypeContract, Location: "Berlin", MaxDaysOld: 7, Page: 3, PageSize: 10},
		},
		{
			name:   "past 24 hours",
			params: Params{DatePosted: "Past 24 hours"},
			want:   jobsource.Query{MaxDaysOld: 1, Page: 1, PageSize: 25},
		},
		{
			name:   "page size capped to gateway size",
			params: Params{PageSize: 1 << 40},
			want:   jobsource.Query{Page: 1, PageSize: 25},
		},
		{
			name:   "page capped",
			params: Params{Page: 1<<62 + 1, PageSize: 2},
			want:   jobsource.Query{Page: MaxPage, PageSize: 2},
		},
		{
			name:   "unknown date bucket means no cutoff",
			params: Params{DatePosted: "Yesterday-ish", Page: -2},
			want:   jobsource.Query{Page: 1, PageSize: 25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.BuildQuery(tt.params); got != tt.want {
				t.Errorf("BuildQuery = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestIngest_PersistsFetchedJobs は取得結果がストアに渡されることを検証する。
func TestIngest_PersistsFetchedJobs(t *testing.T) {
	var got []model.Job
	store := &mockStore{
		ingestFn: func(_ context.Context, jobs []model.Job) ([]model.Job, error) {
			got = jobs
			out := make([]model.Job, len(jobs))
			for i, j := range jobs {
				j.ID = int64(i + 1)
				out[i] = j
			}
			return out, nil
		},
	}
	var buf bytes.Buffer
	g := NewGateway([]jobsource.Source{staticSource("a", job("a", "1"), job("a", "2"))}, nil, newTestLogger(&buf), 0, 0)

	saved, err := g.Ingest(context.Background(), store, Params{})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if len(got) != 2 || len(saved) != 2 {
		t.Fatalf("stored %d, saved %d, want 2/2", len(got), len(saved))
	}
	if saved[1].ID != 2 {
		t.Errorf("saved[1].ID = %d, want 2", saved[1].ID)
	}
}

// TestIngest_NoJobs_SkipsStore は結果が空の場合にストアを呼ばないことを検証する。
func TestIngest_NoJobs_SkipsStore(t *testing.T) {
	store := &mockStore{
		ingestFn: func(context.Context, []model.Job) ([]model.Job, error) {
			t.Error("store should not be called")
			return nil, nil
		},
	}
	var buf bytes.Buffer
	g := NewGateway(nil, nil, newTestLogger(&buf), 0, 0)

	saved, err := g.Ingest(context.Background(), store, Params{})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if len(saved) != 0 {
		t.Errorf("len(saved) = %d, want 0", len(saved))
	}
}

// TestIngest_StoreError はストアのエラーが返されることを検証する。
func TestIngest_StoreError(t *testing.T) {
	store := &mockStore{
		ingestFn: func(context.Context, []model.Job) ([]model.Job, error) {
			return nil, errors.New("db down")
		},
	}
	var buf bytes.Buffer
	g := NewGateway([]jobsource.Source{staticSource("a", job("a", "1"))}, nil, newTestLogger(&buf), 0, 0)

	if _, err := g.Ingest(context.Background(), store, Params{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSources_ReturnsNames(t *testing.T) {
	var buf bytes.Buffer
	g := NewGateway([]jobsource.Source{staticSource("adzuna"), staticSource("weworkremotely")}, nil, newTestLogger(&buf), 0, 0)

	names := g.Sources()
	if len(names) != 2 || names[0] != "adzuna" || names[1] != "weworkremotely" {
		t.Errorf("Sources = %v", names)
	}
}

// TestFetchJobs_HugePage_ReturnsEmpty は極端なページ番号でもソースへ上限内の値が渡り、空の結果になることを検証する。
func TestFetchJobs_HugePage_ReturnsEmpty(t *testing.T) {
	var got jobsource.Query
	src := &mockSource{
		name: "paged",
		searchFn: func(_ context.Context, q jobsource.Query) ([]model.Job, error) {
			got = q
			return nil, nil
		},
	}
	var buf bytes.Buffer
	g := NewGateway([]jobsource.Source{src}, nil, newTestLogger(&buf), 0, 0)

	jobs := g.FetchJobs(context.Background(), Params{Page: 1<<62 + 1, PageSize: 1 << 62})

	if len(jobs) != 0 {
		t.Errorf("len(jobs) = %d, want 0", len(jobs))
	}
	if got.Page != MaxPage || got.PageSize != DefaultPageSize {
		t.Errorf("query page/pageSize = %d/%d, want %d/%d", got.Page, got.PageSize, MaxPage, DefaultPageSize)
	}
}

// TestFetchJobs_PanickingSource_KeepsOtherSources はソースのpanicが他のソースの結果を失わせないことを検証する。
func TestFetchJobs_PanickingSource_KeepsOtherSources(t *testing.T) {
	broken := &mockSource{
		name: "broken",
		searchFn: func(context.Context, jobsource.Query) ([]model.Job, error) {
			var jobs []model.Job
			_ = jobs[3]
			return jobs, nil
		},
	}
	var buf bytes.Buffer
	mc := &mockMetrics{}
	g := NewGateway([]jobsource.Source{broken, staticSource("ok", job("ok", "1"))}, mc, newTestLogger(&buf), 0, 0)

	jobs := g.FetchJobs(context.Background(), Params{})

	if len(jobs) != 1 || jobs[0].ExternalJobID != "1" {
		t.Errorf("jobs = %+v, want the healthy source's job", jobs)
	}
	if len(mc.failure) != 1 || mc.failure[0] != "broken" {
		t.Errorf("failure metrics = %v, want [broken]", mc.failure)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"source":"broken"`)) {
		t.Errorf("expected panic log for broken source, got %s", buf.String())
	}
}

// TestFetchJobs_CancelledContext_ReachesSources は呼び出し元のキャンセルがソースに伝わることを検証する。
func TestFetchJobs_CancelledContext_ReachesSources(t *testing.T) {
	src := &mockSource{
		name: "ctx",
		searchFn: func(ctx context.Context, _ jobsource.Query) ([]model.Job, error) {
			return nil, ctx.Err()
		},
	}
	var buf bytes.Buffer
	mc := &mockMetrics{}
	g := NewGateway([]jobsource.Source{src}, mc, newTestLogger(&buf), 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	jobs := g.FetchJobs(ctx, Params{})

	if len(jobs) != 0 {
		t.Errorf("len(jobs) = %d, want 0", len(jobs))
	}
	if len(mc.failure) != 1 {
		t.Errorf("failure metrics = %v, want one failure", mc.failure)
	}
}
