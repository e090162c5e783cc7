package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stealthee/radar-cli/internal/alert"
	"github.com/stealthee/radar-cli/internal/enrich"
	"github.com/stealthee/radar-cli/internal/model"
	"github.com/stealthee/radar-cli/internal/score"
	"github.com/stealthee/radar-cli/internal/store"
	"github.com/stealthee/radar-cli/pkg/anthropic"
	"github.com/stealthee/radar-cli/pkg/slackhook"
	"github.com/stealthee/radar-cli/pkg/tavily"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeSearch struct {
	resp *tavily.SearchResponse
	err  error
}

func (f *fakeSearch) Search(ctx context.Context, req tavily.SearchRequest) (*tavily.SearchResponse, error) {
	return f.resp, f.err
}

type mockParser struct {
	mock.Mock
}

func (m *mockParser) ParseFields(ctx context.Context, html string, fields []string) (map[string]string, error) {
	args := m.Called(ctx, html, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

type mockAI struct {
	mock.Mock
}

func (m *mockAI) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, msg slackhook.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testConfig(allowedHost string) Config {
	return Config{
		MaxCandidates:  10,
		DefaultResults: 5,
		AllowedDomains: []string{allowedHost},
		SearchDomains:  []string{allowedHost},
		HighLikelihood: 0.70,
	}
}

func pageHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "<html><head><title>Page %s</title></head><body>stealth mode launch content for %s</body></html>", r.URL.Path, r.URL.Path)
}

func TestRun_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(pageHandler))
	defer srv.Close()
	host := strings.TrimPrefix(srv.URL, "http://")
	hostname := strings.Split(host, ":")[0]

	search := &fakeSearch{resp: &tavily.SearchResponse{Results: []tavily.SearchResult{
		{Title: "roundup", URL: srv.URL + "/a", Content: "also see " + srv.URL + "/b and https://ignored.example/c"},
	}}}

	parser := &mockParser{}
	parser.On("ParseFields", mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]string{"pricing": "$10"}, nil)

	ai := &mockAI{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "Signal 1:\nLaunch Likelihood: 0.82\nConfidence: High\nReasoning: strong\n\n" +
			"Signal 2:\nLaunch Likelihood: 0.40\nConfidence: Low\nReasoning: weak\n"}},
	}, nil)

	notifier := &mockNotifier{}
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	st := newTestStore(t)
	p := New(
		search,
		enrich.NewStage(enrich.NewHTTPFetcher(100), parser, 500),
		score.NewScorer(ai, "test-model"),
		st,
		alert.NewDispatcher(0.75, notifier),
		testConfig(hostname),
	)

	report, err := p.Run(context.Background(), Request{Query: "stealth launch"})
	require.NoError(t, err)
	require.Equal(t, StateDone, report.State)

	assert.Equal(t, 2, report.Summary.CandidateURLs)
	assert.Equal(t, 2, report.Summary.SignalsEnriched)
	assert.Equal(t, 2, report.Summary.SignalsScored)
	assert.Equal(t, 2, report.Summary.SignalsStored)
	assert.Equal(t, 1, report.Summary.AlertsDispatched)

	// header block carries the analyzed-URL count and alert count
	require.NotEmpty(t, report.Blocks)
	assert.Contains(t, report.Blocks[0], "URLs Analyzed: 2")
	assert.Contains(t, report.Blocks[0], "Alerts Dispatched: 1")

	rendered := report.Render()
	assert.Contains(t, rendered, "Launch Likelihood: 0.82")
	assert.Contains(t, rendered, "Summary: 1/2 signals show high launch likelihood.")

	// both signals persisted regardless of score
	records, err := st.ListSignals(context.Background(), store.SignalFilter{RunID: report.RunID})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// run record completed with the summary
	run, err := st.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)

	notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestRun_CandidatesCappedAtRequestedResultCount(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		pageHandler(w, r)
	}))
	defer srv.Close()
	hostname := strings.Split(strings.TrimPrefix(srv.URL, "http://"), ":")[0]

	// three allow-listed candidates surface, but the caller asked for two
	search := &fakeSearch{resp: &tavily.SearchResponse{Results: []tavily.SearchResult{
		{Title: "roundup", URL: srv.URL + "/a", Content: srv.URL + "/b also " + srv.URL + "/c"},
	}}}

	parser := &mockParser{}
	parser.On("ParseFields", mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]string{}, nil)

	ai := &mockAI{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "Signal 1:\nLaunch Likelihood: 0.5\n\nSignal 2:\nLaunch Likelihood: 0.5\n"}},
	}, nil)

	st := newTestStore(t)
	p := New(
		search,
		enrich.NewStage(enrich.NewHTTPFetcher(100), parser, 500),
		score.NewScorer(ai, "test-model"),
		st,
		alert.NewDispatcher(0.75, nil),
		testConfig(hostname),
	)

	report, err := p.Run(context.Background(), Request{Query: "stealth launch", NumResults: 2})
	require.NoError(t, err)
	require.Equal(t, StateDone, report.State)

	assert.Equal(t, int32(2), fetches.Load(), "only the first num_results candidates are fetched")
	assert.Equal(t, 2, report.Summary.CandidateURLs)
	assert.Equal(t, 2, report.Summary.SignalsEnriched)
	assert.Contains(t, report.Blocks[0], "URLs Analyzed: 2")

	records, err := st.ListSignals(context.Background(), store.SignalFilter{RunID: report.RunID})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRun_EmptyQueryAborts(t *testing.T) {
	p := New(&fakeSearch{}, nil, nil, newTestStore(t), alert.NewDispatcher(0.75, nil), testConfig("x"))

	report, err := p.Run(context.Background(), Request{Query: "   "})
	require.NoError(t, err)
	assert.Equal(t, StateAborted, report.State)
	assert.Contains(t, report.Message, "query")
	assert.Empty(t, report.RunID, "no run record before validation")
}

func TestRun_MissingSearchCredentialAborts(t *testing.T) {
	p := New(nil, nil, nil, newTestStore(t), alert.NewDispatcher(0.75, nil), testConfig("x"))

	report, err := p.Run(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, StateAborted, report.State)
	assert.Contains(t, report.Message, "Tavily")
}

func TestRun_ZeroSearchResultsAborts(t *testing.T) {
	st := newTestStore(t)
	search := &fakeSearch{resp: &tavily.SearchResponse{}}
	p := New(search, nil, nil, st, alert.NewDispatcher(0.75, nil), testConfig("x"))

	report, err := p.Run(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, StateAborted, report.State)
	assert.Contains(t, report.Message, "no results")

	run, err := st.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusAborted, run.Status)
	assert.Equal(t, report.Message, run.Reason)
}

func TestRun_ZeroCandidateURLsAborts(t *testing.T) {
	search := &fakeSearch{resp: &tavily.SearchResponse{Results: []tavily.SearchResult{
		{Title: "hit", URL: "https://unrelated.example/a", Content: "nothing on monitored sites"},
	}}}
	p := New(search, nil, nil, newTestStore(t), alert.NewDispatcher(0.75, nil), testConfig("techcrunch.com"))

	report, err := p.Run(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, StateAborted, report.State)
	assert.Contains(t, report.Message, "candidate URLs")
}

func TestRun_ZeroEnrichedAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	hostname := strings.Split(strings.TrimPrefix(srv.URL, "http://"), ":")[0]

	search := &fakeSearch{resp: &tavily.SearchResponse{Results: []tavily.SearchResult{
		{Title: "hit", URL: srv.URL + "/a", Content: "x"},
	}}}
	parser := &mockParser{}
	p := New(
		search,
		enrich.NewStage(enrich.NewHTTPFetcher(100), parser, 500),
		nil,
		newTestStore(t),
		alert.NewDispatcher(0.75, nil),
		testConfig(hostname),
	)

	report, err := p.Run(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, StateAborted, report.State)
	assert.Contains(t, report.Message, "enriched")
}

func TestRun_ZeroDecodedScoresAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(pageHandler))
	defer srv.Close()
	hostname := strings.Split(strings.TrimPrefix(srv.URL, "http://"), ":")[0]

	search := &fakeSearch{resp: &tavily.SearchResponse{Results: []tavily.SearchResult{
		{Title: "hit", URL: srv.URL + "/a", Content: "x"},
	}}}
	parser := &mockParser{}
	parser.On("ParseFields", mock.Anything, mock.Anything, mock.Anything).
		Return(map[string]string{}, nil)

	ai := &mockAI{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "no analysis blocks at all"}},
	}, nil)

	p := New(
		search,
		enrich.NewStage(enrich.NewHTTPFetcher(100), parser, 500),
		score.NewScorer(ai, "test-model"),
		newTestStore(t),
		alert.NewDispatcher(0.75, nil),
		testConfig(hostname),
	)

	report, err := p.Run(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, StateAborted, report.State)
	assert.Contains(t, report.Message, "decodable")
}

func TestRun_SearchFailureMarksRunFailed(t *testing.T) {
	st := newTestStore(t)
	search := &fakeSearch{err: fmt.Errorf("transport down")}
	p := New(search, nil, nil, st, alert.NewDispatcher(0.75, nil), testConfig("x"))

	_, err := p.Run(context.Background(), Request{Query: "q"})
	require.Error(t, err)
}
