package fbads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestDeriveInsightsZeroDenominators(t *testing.T) {
	// No impressions and no 3s views: both ratios must be 0, not NaN.
	ins := deriveInsights(insightEntry{
		AdID:  "1",
		Spend: "3500",
		VideoPlayActions: []actionValue{
			{ActionType: "video_view", Value: "0"},
		},
	})
	if ins.HookRate != 0 {
		t.Errorf("hook rate = %v, want 0", ins.HookRate)
	}
	if ins.HoldRate != 0 {
		t.Errorf("hold rate = %v, want 0", ins.HoldRate)
	}
}

func TestDeriveInsightsRates(t *testing.T) {
	ins := deriveInsights(insightEntry{
		AdID:        "1",
		Spend:       "1000",
		Impressions: "10000",
		CostPerActionType: []actionValue{
			{ActionType: "link_click", Value: "2"},
			{ActionType: "purchase", Value: "500"},
		},
		Actions:      []actionValue{{ActionType: "purchase", Value: "2"}},
		ActionValues: []actionValue{{ActionType: "purchase", Value: "1800"}},
		PurchaseROAS: []actionValue{{ActionType: "omni_purchase", Value: "1.8"}},
		VideoPlayActions: []actionValue{
			{ActionType: "video_view", Value: "2500"},
		},
		VideoThruplay: []actionValue{
			{ActionType: "video_view", Value: "500"},
		},
	})

	if ins.CPA != 500 {
		t.Errorf("cpa = %v, want 500", ins.CPA)
	}
	if ins.WebsitePurchases != 2 || ins.WebsitePurchasesValue != 1800 {
		t.Errorf("purchases = %d/%v", ins.WebsitePurchases, ins.WebsitePurchasesValue)
	}
	if ins.ROAS != 1.8 {
		t.Errorf("roas = %v, want 1.8", ins.ROAS)
	}
	if ins.HookRate != 25 {
		t.Errorf("hook rate = %v, want 25", ins.HookRate)
	}
	if ins.HoldRate != 20 {
		t.Errorf("hold rate = %v, want 20", ins.HoldRate)
	}
}

// fakeGraph serves a minimal two-ad account: one winner, one under the
// spend threshold.
func fakeGraph(t *testing.T) *httptest.Server {
	t.Helper()

	adsPage := func(w http.ResponseWriter, r *http.Request) {
		fields := r.URL.Query().Get("fields")
		if strings.Contains(fields, "creative") {
			fmt.Fprint(w, `{"data":[
				{"id":"a1","creative":{"id":"c1","video_id":"v1"}},
				{"id":"a2","creative":{"id":"c2","image_url":"https://cdn.example/i.jpg"}}
			]}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"a1","name":"Winner"},{"id":"a2","name":"Loser"}]}`)
	}

	insightsPage := func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"ad_id":"a1","spend":"3500","impressions":"1000",
			 "cost_per_action_type":[{"action_type":"purchase","value":"500"}],
			 "purchase_roas":[{"action_type":"omni_purchase","value":"2.5"}]},
			{"ad_id":"a2","spend":"2000","impressions":"1000",
			 "cost_per_action_type":[{"action_type":"purchase","value":"500"}],
			 "purchase_roas":[{"action_type":"omni_purchase","value":"4.0"}]}
		]}`)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/act_123/ads", adsPage)
	mux.HandleFunc("/act_123/insights", insightsPage)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchWinningAdsAppliesThresholds(t *testing.T) {
	srv := fakeGraph(t)
	c := New("tok", "123", Options{
		BaseURL:        srv.URL,
		SpendThreshold: 3000,
		CPAThreshold:   600,
	})

	ads, err := c.FetchWinningAds(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("FetchWinningAds: %v", err)
	}
	if len(ads) != 1 {
		t.Fatalf("winning ads = %d, want 1", len(ads))
	}
	if ads[0].ID != "a1" || ads[0].Name != "Winner" {
		t.Errorf("unexpected winner: %+v", ads[0])
	}
	if !ads[0].HasVideo() {
		t.Errorf("winner should carry video creative")
	}
}

func TestWinningAdsDegradesToEmptyOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`)
	}))
	t.Cleanup(srv.Close)

	c := New("bad", "123", Options{BaseURL: srv.URL, CacheDir: t.TempDir()})
	if ads := c.WinningAds(context.Background(), Filters{}); len(ads) != 0 {
		t.Errorf("ads = %v, want empty", ads)
	}
}

func TestSortCriteria(t *testing.T) {
	ads := []Ad{
		{ID: "no-insights"},
		{ID: "low-roas", Insights: &Insights{CPA: 100, ROAS: 1}},
		{ID: "high-roas", Insights: &Insights{CPA: 300, ROAS: 3}},
	}
	c := New("tok", "123", Options{})

	byROAS := c.sorted(append([]Ad(nil), ads...), SortROASDesc)
	if byROAS[0].ID != "high-roas" {
		t.Errorf("roas_desc first = %s", byROAS[0].ID)
	}
	if byROAS[2].ID != "no-insights" {
		t.Errorf("ads without insights sort last, got %s", byROAS[2].ID)
	}
	byCPA := c.sorted(append([]Ad(nil), ads...), SortCPAAsc)
	if byCPA[1].ID != "low-roas" || byCPA[2].ID != "high-roas" {
		t.Errorf("cpa_asc order = %s, %s", byCPA[1].ID, byCPA[2].ID)
	}
}

func TestCheckTokenNoActiveAccounts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"1","name":"User"}`)
	})
	mux.HandleFunc("/me/adaccounts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": "act_9", "name": "Paused", "account_status": 2}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New("tok", "", Options{BaseURL: srv.URL})
	ok, reason, accounts := c.CheckToken(context.Background())
	if ok {
		t.Fatal("expected token check to fail with no active accounts")
	}
	if reason == "" || accounts != nil {
		t.Errorf("reason=%q accounts=%v", reason, accounts)
	}
}

func TestCheckTokenSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "access_token=tok") {
			t.Errorf("missing access token in %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"id":"1","name":"User"}`)
	})
	mux.HandleFunc("/me/adaccounts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"act_9","name":"Main","account_status":1}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New("tok", "", Options{BaseURL: srv.URL})
	ok, reason, accounts := c.CheckToken(context.Background())
	if !ok {
		t.Fatalf("CheckToken failed: %s", reason)
	}
	if len(accounts) != 1 || accounts[0].ID != "act_9" {
		t.Errorf("accounts = %+v", accounts)
	}
}

func TestPaginationFollowsNext(t *testing.T) {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/act_123/ads", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if strings.Contains(q.Get("fields"), "creative") {
			fmt.Fprint(w, `{"data":[{"id":"a1","creative":{"id":"c1","image_url":"u"}},{"id":"a2","creative":{"id":"c2","image_url":"u"}}]}`)
			return
		}
		if q.Get("after") == "p2" {
			fmt.Fprint(w, `{"data":[{"id":"a2","name":"Second"}]}`)
			return
		}
		next := srv.URL + "/act_123/ads?" + (url.Values{
			"fields":       {"id,name"},
			"after":        {"p2"},
			"access_token": {"tok"},
		}).Encode()
		json.NewEncoder(w).Encode(map[string]any{
			"data":   []map[string]string{{"id": "a1", "name": "First"}},
			"paging": map[string]string{"next": next},
		})
	})
	mux.HandleFunc("/act_123/insights", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"ad_id":"a1","spend":"5000","cost_per_action_type":[{"action_type":"purchase","value":"10"}]},
			{"ad_id":"a2","spend":"5000","cost_per_action_type":[{"action_type":"purchase","value":"10"}]}
		]}`)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New("tok", "123", Options{BaseURL: srv.URL, SpendThreshold: 3000, CPAThreshold: 600})
	ads, err := c.FetchWinningAds(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("FetchWinningAds: %v", err)
	}
	if len(ads) != 2 {
		t.Fatalf("ads = %d, want 2 across pages", len(ads))
	}
}
