package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *int64, *sync.Mutex, *[]time.Time) {
	t.Helper()
	var mu sync.Mutex
	var times []time.Time
	var hits int64

	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		hits++
		mu.Unlock()
		w.Write([]byte(`{"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."}}`))
	})
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		hits++
		mu.Unlock()
		w.Write([]byte(`{"filings":{"recent":{
			"form":["10-K","10-Q","8-K"],
			"accessionNumber":["0000320193-24-000001","0000320193-24-000002","0000320193-24-000003"],
			"filingDate":["2024-01-01","2024-02-01","2024-03-01"],
			"primaryDocument":["a.htm","b.htm","c.htm"]
		}}}`))
	})
	mux.HandleFunc("/Archives/edgar/data/320193/000032019324000001/a.htm", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		hits++
		mu.Unlock()
		w.Write([]byte("<html>filing body</html>"))
	})
	mux.HandleFunc("/Archives/edgar/data/320193/000032019324000002/b.htm", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		hits++
		mu.Unlock()
		w.Write([]byte("<html>filing body</html>"))
	})
	mux.HandleFunc("/Archives/edgar/data/320193/000032019324000003/c.htm", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		hits++
		mu.Unlock()
		w.Write([]byte("<html>filing body</html>"))
	})

	srv := httptest.NewServer(mux)
	return srv, &hits, &mu, &times
}

func TestDownloadFilings_HappyPath(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	defer srv.Close()

	f := NewEdgarFetcher(srv.URL, srv.URL, "test-agent/1.0 (test@example.com)", time.Millisecond, 1)
	docs, err := f.DownloadFilings(context.Background(), "AAPL", []string{"10-K"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "10-K", docs[0].FilingType)
	assert.Equal(t, "a.htm", docs[0].FileName)
	assert.Equal(t, "AAPL", docs[0].CompanyIdentifier)
}

func TestDownloadFilings_NumericKeyZeroPadded(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	defer srv.Close()

	f := NewEdgarFetcher(srv.URL, srv.URL, "test-agent/1.0 (test@example.com)", time.Millisecond, 0)
	docs, err := f.DownloadFilings(context.Background(), "320193", []string{"10-K", "10-Q"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDownloadFilings_UnknownTickerReturnsEmpty(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	defer srv.Close()

	f := NewEdgarFetcher(srv.URL, srv.URL, "test-agent/1.0 (test@example.com)", time.Millisecond, 0)
	docs, err := f.DownloadFilings(context.Background(), "NOPE", []string{"10-K"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRateFloor_MinimumInterArrival(t *testing.T) {
	srv, _, mu, times := newTestServer(t)
	defer srv.Close()

	floor := 50 * time.Millisecond
	f := NewEdgarFetcher(srv.URL, srv.URL, "test-agent/1.0 (test@example.com)", floor, 0)

	for i := 0; i < 5; i++ {
		body, err := f.get(context.Background(), srv.URL+"/files/company_tickers.json")
		require.NoError(t, err)
		body.Close()
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(*times), 2)
	for i := 1; i < len(*times); i++ {
		gap := (*times)[i].Sub((*times)[i-1])
		assert.GreaterOrEqual(t, gap, floor-time.Millisecond, "request %d fired too soon after %d", i, i-1)
	}
}
