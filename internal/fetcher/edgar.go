// Package fetcher implements the Archive Fetcher (§4.1) against the SEC
// EDGAR archive, the reference archive named in §6.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/contexta-labs/filingsrag/internal/core"
	"github.com/contexta-labs/filingsrag/internal/models"
)

// EdgarFetcher implements core.ArchiveFetcher against SEC EDGAR.
//
// baseURL / dataBaseURL: https://www.sec.gov / https://data.sec.gov in
// production; overridable for tests.
// userAgent: must be contact-bearing per EDGAR's fair-access policy.
// limiter: enforces the 100ms floor (§4.1, §5, §8 property 4) as a single
// shared permit — one token per interval, burst 1, so every caller
// serializes through it regardless of goroutine count.
type EdgarFetcher struct {
	httpClient  *http.Client
	baseURL     string
	dataBaseURL string
	userAgent   string
	maxFilings  int
	limiter     *rate.Limiter
}

// NewEdgarFetcher constructs a fetcher with a shared rate limiter set to
// floor. A floor of 100ms yields the archive's published 10 req/s cap.
func NewEdgarFetcher(baseURL, dataBaseURL, userAgent string, floor time.Duration, maxFilings int) *EdgarFetcher {
	if floor <= 0 {
		floor = 100 * time.Millisecond
	}
	return &EdgarFetcher{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		dataBaseURL: strings.TrimRight(dataBaseURL, "/"),
		userAgent:   userAgent,
		maxFilings:  maxFilings,
		limiter:     rate.NewLimiter(rate.Every(floor), 1),
	}
}

var _ core.ArchiveFetcher = (*EdgarFetcher)(nil)

type tickerEntry struct {
	CIK      int    `json:"cik_str"`
	Ticker   string `json:"ticker"`
	Title    string `json:"title"`
}

type submissionsResponse struct {
	Filings struct {
		Recent struct {
			Form            []string `json:"form"`
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// DownloadFilings implements core.ArchiveFetcher.
func (f *EdgarFetcher) DownloadFilings(ctx context.Context, companyIdentifier string, filingTypes []string) ([]models.FilingDocument, error) {
	key, err := f.resolveKey(ctx, companyIdentifier)
	if err != nil || key == "" {
		return nil, nil
	}

	candidates, err := f.listFilings(ctx, key, filingTypes)
	if err != nil {
		return nil, err
	}

	var out []models.FilingDocument
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		doc, err := f.downloadOne(ctx, key, c)
		if err != nil || doc == nil {
			continue
		}
		doc.CompanyIdentifier = companyIdentifier
		out = append(out, *doc)
	}
	return out, nil
}

// resolveKey treats a purely numeric identifier as a CIK (zero-padded to
// 10 digits); otherwise it looks it up by ticker, case-insensitively.
func (f *EdgarFetcher) resolveKey(ctx context.Context, companyIdentifier string) (string, error) {
	if isAllDigits(companyIdentifier) {
		return zeroPad10(companyIdentifier), nil
	}

	body, err := f.get(ctx, f.baseURL+"/files/company_tickers.json")
	if err != nil {
		return "", err
	}
	defer body.Close()

	var index map[string]tickerEntry
	if err := json.NewDecoder(body).Decode(&index); err != nil {
		return "", fmt.Errorf("decode ticker index: %w", err)
	}

	want := strings.ToLower(companyIdentifier)
	for _, entry := range index {
		if strings.ToLower(entry.Ticker) == want {
			return zeroPad10(strconv.Itoa(entry.CIK)), nil
		}
	}
	return "", nil
}

type filingCandidate struct {
	form            string
	accessionNumber string
	filingDate      time.Time
	primaryDocument string
}

func (f *EdgarFetcher) listFilings(ctx context.Context, key10 string, filingTypes []string) ([]filingCandidate, error) {
	wanted := make(map[string]bool, len(filingTypes))
	for _, t := range filingTypes {
		wanted[strings.ToUpper(t)] = true
	}

	body, err := f.get(ctx, f.dataBaseURL+"/submissions/CIK"+key10+".json")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp submissionsResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}

	recent := resp.Filings.Recent
	n := len(recent.Form)
	var out []filingCandidate
	for i := 0; i < n; i++ {
		if i >= len(recent.AccessionNumber) || i >= len(recent.FilingDate) || i >= len(recent.PrimaryDocument) {
			break
		}
		if !wanted[strings.ToUpper(recent.Form[i])] {
			continue
		}
		date, err := time.Parse("2006-01-02", recent.FilingDate[i])
		if err != nil {
			continue
		}
		out = append(out, filingCandidate{
			form:            recent.Form[i],
			accessionNumber: recent.AccessionNumber[i],
			filingDate:      date,
			primaryDocument: recent.PrimaryDocument[i],
		})
		if f.maxFilings > 0 && len(out) >= f.maxFilings {
			break
		}
	}
	return out, nil
}

func (f *EdgarFetcher) downloadOne(ctx context.Context, key10 string, c filingCandidate) (*models.FilingDocument, error) {
	keyNoZeros := strings.TrimLeft(key10, "0")
	if keyNoZeros == "" {
		keyNoZeros = "0"
	}
	accessionNoDashes := strings.ReplaceAll(c.accessionNumber, "-", "")

	url := fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s", f.baseURL, keyNoZeros, accessionNoDashes, c.primaryDocument)

	body, err := f.get(ctx, url)
	if err != nil {
		return nil, nil
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, nil
	}

	return &models.FilingDocument{
		Content:         data,
		FileName:        c.primaryDocument,
		FilingType:      c.form,
		AccessionNumber: c.accessionNumber,
		FilingDate:      c.filingDate,
	}, nil
}

// get acquires the shared rate-limit permit, then performs a contact-bearing
// GET. Callers must close the returned body.
func (f *EdgarFetcher) get(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d", core.ErrProviderFailure, url, resp.StatusCode)
	}
	return resp.Body, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func zeroPad10(s string) string {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		s = "0"
	}
	for len(s) < 10 {
		s = "0" + s
	}
	return s
}
