package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harvest_service/internal/config"
	"harvest_service/internal/core"
	"harvest_service/internal/domain/model"
)

type fakeRecommender struct {
	fragments []core.Fragment
	err       error
	lastReq   model.RecommendationRequest
}

func (f *fakeRecommender) Stream(ctx context.Context, req model.RecommendationRequest) (<-chan core.Fragment, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan core.Fragment, len(f.fragments))
	for _, frag := range f.fragments {
		ch <- frag
	}
	close(ch)
	return ch, nil
}

func (f *fakeRecommender) Recommend(ctx context.Context, req model.RecommendationRequest) (*core.Result, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &core.Result{
		Recommendation: model.Recommendation{ID: "rec-1", Crop: req.Crop, Action: model.ActionWait},
		Fragments:      f.fragments,
	}, nil
}

type fakeCache struct{ status core.CacheStatus }

func (f fakeCache) Status() core.CacheStatus { return f.status }

type fakePrefetcher struct {
	concurrency int
	fail        map[model.Location]bool
}

func (f *fakePrefetcher) Prefetch(ctx context.Context, locs []model.Location, concurrency int) []core.PrefetchResult {
	f.concurrency = concurrency
	out := make([]core.PrefetchResult, len(locs))
	for i, loc := range locs {
		out[i] = core.PrefetchResult{Location: loc, Key: loc.Key().String()}
		if f.fail[loc] {
			out[i].Error = "satellite: unavailable"
		}
	}
	return out
}

func testFragments() []core.Fragment {
	frags := make([]core.Fragment, len(core.FragmentOrder))
	for i, typ := range core.FragmentOrder {
		frags[i] = core.Fragment{Type: typ, Seq: i + 1, Data: gin.H{"n": i + 1}}
	}
	return frags
}

func newTestRouter(t *testing.T, rec *fakeRecommender, pre *fakePrefetcher) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	data, err := config.ReadRules("")
	require.NoError(t, err)
	rules, err := core.LoadRuleStore(data)
	require.NoError(t, err)

	cache := fakeCache{status: core.CacheStatus{Entries: 3, Locations: 2, Persistent: true}}
	return NewRouter(NewHandler(rec, cache, pre, rules))
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const tomatoBody = `{"location":{"lat":20.94,"lon":77.76},"crop":"tomato","field_size":2}`

func TestStreamRecommendation_EmitsEventsInOrder(t *testing.T) {
	rec := &fakeRecommender{fragments: testFragments()}
	router := newTestRouter(t, rec, &fakePrefetcher{})

	w := do(router, http.MethodPost, "/api/recommendations", tomatoBody)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	body := w.Body.String()
	last := -1
	for _, typ := range core.FragmentOrder {
		idx := strings.Index(body, fmt.Sprintf("event:%s\n", typ))
		require.GreaterOrEqual(t, idx, 0, "missing %s event", typ)
		assert.Greater(t, idx, last, "%s out of order", typ)
		last = idx
	}
	assert.Contains(t, body, `"seq":5`)
	assert.Equal(t, "tomato", rec.lastReq.Crop)
	assert.Equal(t, model.Location{Latitude: 20.94, Longitude: 77.76}, rec.lastReq.Location)
}

func TestRecommendationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"malformed body", `{"crop":`, nil, http.StatusBadRequest},
		{"invalid request", tomatoBody, fmt.Errorf("%w: latitude out of range", core.ErrInvalidRequest), http.StatusBadRequest},
		{"unconfigured crop", tomatoBody, model.ConfigurationError("crop %q is not configured", "potato"), http.StatusUnprocessableEntity},
		{"internal", tomatoBody, fmt.Errorf("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		for _, path := range []string{"/api/recommendations", "/api/recommendations/simple"} {
			t.Run(tt.name+" "+path, func(t *testing.T) {
				router := newTestRouter(t, &fakeRecommender{err: tt.err}, &fakePrefetcher{})
				w := do(router, http.MethodPost, path, tt.body)
				assert.Equal(t, tt.code, w.Code)

				var resp map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp["error"])
			})
		}
	}
}

func TestRecommend_ReturnsResult(t *testing.T) {
	router := newTestRouter(t, &fakeRecommender{fragments: testFragments()}, &fakePrefetcher{})

	w := do(router, http.MethodPost, "/api/recommendations/simple", tomatoBody)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Recommendation model.Recommendation `json:"recommendation"`
		Fragments      []core.Fragment      `json:"fragments"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rec-1", resp.Recommendation.ID)
	assert.Equal(t, model.ActionWait, resp.Recommendation.Action)
	assert.Len(t, resp.Fragments, 5)
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, &fakeRecommender{}, &fakePrefetcher{})

	w := do(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string   `json:"status"`
		Crops  []string `json:"crops"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, []string{"onion", "tomato"}, resp.Crops)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &fakeRecommender{}, &fakePrefetcher{})

	w := do(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestCacheStatus(t *testing.T) {
	router := newTestRouter(t, &fakeRecommender{}, &fakePrefetcher{})

	w := do(router, http.MethodGet, "/api/cache/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"entries":3,"locations":2,"refreshes_in_flight":0,"persistent":true}`, w.Body.String())
}

func TestPrefetch(t *testing.T) {
	bad := model.Location{Latitude: 21.1, Longitude: 79.0}
	pre := &fakePrefetcher{fail: map[model.Location]bool{bad: true}}
	router := newTestRouter(t, &fakeRecommender{}, pre)

	w := do(router, http.MethodPost, "/api/cache/prefetch", `{"locations":[{"lat":20.94,"lon":77.76},{"lat":21.1,"lon":79.0}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp PrefetchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Requested)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, defaultPrefetchLimit, pre.concurrency)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "20.9400_77.7600", resp.Results[0].Key)

	w = do(router, http.MethodPost, "/api/cache/prefetch", `{"locations":[{"lat":20.94,"lon":77.76}],"concurrency":9}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 9, pre.concurrency)
}

func TestPrefetch_Validation(t *testing.T) {
	many := make([]string, maxPrefetchLocations+1)
	for i := range many {
		many[i] = `{"lat":20,"lon":77}`
	}

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"locations":`},
		{"empty", `{"locations":[]}`},
		{"too many", `{"locations":[` + strings.Join(many, ",") + `]}`},
		{"bad coordinate", `{"locations":[{"lat":120,"lon":77}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &fakeRecommender{}, &fakePrefetcher{})
			w := do(router, http.MethodPost, "/api/cache/prefetch", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestBiologicalRules(t *testing.T) {
	router := newTestRouter(t, &fakeRecommender{}, &fakePrefetcher{})

	w := do(router, http.MethodGet, "/api/biological-rules/Tomato", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp RulesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "tomato", resp.Crop)
	assert.NotEmpty(t, resp.Rules)
	for _, r := range resp.Rules {
		assert.Equal(t, "tomato", r.CropID)
	}
	require.Len(t, resp.Sources, 2)
	ids := []string{resp.Sources[0].ID, resp.Sources[1].ID}
	assert.ElementsMatch(t, []string{"icar_phm", "agrovoc"}, ids)

	w = do(router, http.MethodGet, "/api/biological-rules/potato", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
