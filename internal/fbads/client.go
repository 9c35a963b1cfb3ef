package fbads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBaseURL is the Facebook Graph API endpoint.
const DefaultBaseURL = "https://graph.facebook.com/v19.0"

const (
	adListPageLimit   = 1000
	creativeBatchSize = 50
	insightBatchSize  = 100

	// batchConcurrency bounds parallel batch requests so big accounts
	// don't trip the Graph API rate limiter.
	batchConcurrency = 4
)

// Options configures a Client's defaults and cache behavior.
type Options struct {
	BaseURL        string
	CacheDir       string
	CacheTTL       time.Duration
	SpendThreshold float64
	CPAThreshold   float64
	SortBy         string
	WindowDays     int
}

// Client wraps the Facebook Marketing API for one ad account.
type Client struct {
	token     string
	accountID string
	baseURL   string
	opts      Options
	client    *http.Client
}

// New creates a Marketing API client. accountID may be empty when the
// client is only used for CheckToken.
func New(token, accountID string, opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if opts.SortBy == "" {
		opts.SortBy = SortROASDesc
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = 30
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	return &Client{
		token:     token,
		accountID: accountID,
		baseURL:   strings.TrimRight(baseURL, "/"),
		opts:      opts,
		client: &http.Client{
			Timeout: 120 * time.Second, // insight queries can be slow
		},
	}
}

// graphError is the error envelope the Graph API returns.
type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type graphPage[T any] struct {
	Data   []T `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
	Error *graphError `json:"error"`
}

type adEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Creative *struct {
		ID       string `json:"id"`
		ImageURL string `json:"image_url"`
		VideoID  string `json:"video_id"`
	} `json:"creative"`
}

type actionValue struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

type insightEntry struct {
	AdID              string        `json:"ad_id"`
	Spend             string        `json:"spend"`
	Impressions       string        `json:"impressions"`
	CPM               string        `json:"cpm"`
	UniqueCTR         string        `json:"unique_ctr"`
	Frequency         string        `json:"frequency"`
	CostPerActionType []actionValue `json:"cost_per_action_type"`
	Actions           []actionValue `json:"actions"`
	ActionValues      []actionValue `json:"action_values"`
	PurchaseROAS      []actionValue `json:"purchase_roas"`
	VideoPlayActions  []actionValue `json:"video_play_actions"`
	VideoThruplay     []actionValue `json:"video_thruplay_watched_actions"`
}

// get executes one Graph GET and decodes a single page into out.
func getPage[T any](ctx context.Context, c *Client, rawURL string) (graphPage[T], error) {
	var page graphPage[T]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return page, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return page, fmt.Errorf("call graph API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return page, fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(body, &page); err != nil {
		return page, fmt.Errorf("parse graph response (status %d): %w", resp.StatusCode, err)
	}
	if page.Error != nil {
		return page, fmt.Errorf("graph API error %d (%s): %s", page.Error.Code, page.Error.Type, page.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return page, fmt.Errorf("graph API returned status %d: %s", resp.StatusCode, string(body))
	}
	return page, nil
}

// getAll follows paging.next until exhausted.
func getAll[T any](ctx context.Context, c *Client, rawURL string) ([]T, error) {
	var all []T
	for rawURL != "" {
		page, err := getPage[T](ctx, c, rawURL)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		rawURL = page.Paging.Next
	}
	return all, nil
}

func (c *Client) endpoint(path string, params url.Values) string {
	params.Set("access_token", c.token)
	return c.baseURL + path + "?" + params.Encode()
}

// listActiveAds fetches id+name for every active ad in the account.
func (c *Client) listActiveAds(ctx context.Context) ([]adEntry, error) {
	params := url.Values{}
	params.Set("fields", "id,name")
	params.Set("limit", fmt.Sprint(adListPageLimit))
	params.Set("filtering", `[{"field":"effective_status","operator":"IN","value":["ACTIVE"]}]`)
	return getAll[adEntry](ctx, c, c.endpoint("/act_"+c.accountID+"/ads", params))
}

// fetchCreatives fetches creative references in batches of 50,
// querying batches concurrently.
func (c *Client) fetchCreatives(ctx context.Context, adIDs []string) (map[string]adEntry, error) {
	numBatches := (len(adIDs) + creativeBatchSize - 1) / creativeBatchSize
	results := make([][]adEntry, numBatches)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i := 0; i < len(adIDs); i += creativeBatchSize {
		batchIdx := i / creativeBatchSize
		chunk := adIDs[i:min(i+creativeBatchSize, len(adIDs))]

		g.Go(func() error {
			params := url.Values{}
			params.Set("fields", "id,creative{id,image_url,video_id}")
			params.Set("limit", fmt.Sprint(creativeBatchSize))
			params.Set("filtering", adIDFilter(chunk))

			entries, err := getAll[adEntry](ctx, c, c.endpoint("/act_"+c.accountID+"/ads", params))
			if err != nil {
				return fmt.Errorf("fetch creatives batch %d: %w", batchIdx, err)
			}
			results[batchIdx] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]adEntry)
	for _, entries := range results {
		for _, e := range entries {
			if e.Creative != nil {
				out[e.ID] = e
			}
		}
	}
	return out, nil
}

// fetchInsights fetches ad-level insight rows in batches of 100 over the
// given date window.
func (c *Client) fetchInsights(ctx context.Context, adIDs []string, since, until time.Time) (map[string]insightEntry, error) {
	fields := "ad_id,spend,cost_per_action_type,impressions,cpm,unique_ctr,frequency," +
		"purchase_roas,actions,action_values,video_play_actions,video_thruplay_watched_actions"
	timeRange := fmt.Sprintf(`{"since":"%s","until":"%s"}`,
		since.Format("2006-01-02"), until.Format("2006-01-02"))

	numBatches := (len(adIDs) + insightBatchSize - 1) / insightBatchSize
	results := make([][]insightEntry, numBatches)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i := 0; i < len(adIDs); i += insightBatchSize {
		batchIdx := i / insightBatchSize
		chunk := adIDs[i:min(i+insightBatchSize, len(adIDs))]

		g.Go(func() error {
			params := url.Values{}
			params.Set("level", "ad")
			params.Set("fields", fields)
			params.Set("filtering", adIDFilter(chunk))
			params.Set("time_range", timeRange)
			params.Set("limit", "500")

			log.Printf("[fbads] insights query for %d ads", len(chunk))
			entries, err := getAll[insightEntry](ctx, c, c.endpoint("/act_"+c.accountID+"/insights", params))
			if err != nil {
				return fmt.Errorf("fetch insights batch %d: %w", batchIdx, err)
			}
			results[batchIdx] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]insightEntry)
	for _, entries := range results {
		for _, e := range entries {
			out[e.AdID] = e
		}
	}
	return out, nil
}

func adIDFilter(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = `"` + id + `"`
	}
	return `[{"field":"ad.id","operator":"IN","value":[` + strings.Join(quoted, ",") + `]}]`
}

// CheckToken probes the token: it is valid when /me resolves and the user
// has at least one active ad account. Returns (false, reason, nil) on
// any failure.
func (c *Client) CheckToken(ctx context.Context) (bool, string, []AdAccount) {
	params := url.Values{}
	params.Set("fields", "id,name")
	if _, err := getPage[struct{}](ctx, c, c.endpoint("/me", params)); err != nil {
		return false, fmt.Sprintf("token rejected: %v", err), nil
	}

	params = url.Values{}
	params.Set("fields", "id,name,account_status")
	accounts, err := getAll[AdAccount](ctx, c, c.endpoint("/me/adaccounts", params))
	if err != nil {
		return false, fmt.Sprintf("ad accounts unavailable: %v", err), nil
	}

	var active []AdAccount
	for _, a := range accounts {
		if a.Status == 1 {
			active = append(active, a)
		}
	}
	if len(active) == 0 {
		return false, "token valid but no active ad account", nil
	}
	return true, "", active
}
