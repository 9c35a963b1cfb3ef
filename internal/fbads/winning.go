package fbads

import (
	"context"
	"log"
	"sort"
	"strconv"
	"time"
)

// WinningAds returns the account's winning ads, newest cache first. Any
// API failure is logged and degrades to an empty result; callers that need
// the error use FetchWinningAds.
func (c *Client) WinningAds(ctx context.Context, f Filters) []Ad {
	if !f.AdHoc() {
		if ads, ok := c.loadCache(); ok {
			return c.sorted(ads, f.SortBy)
		}
	}

	ads, err := c.FetchWinningAds(ctx, f)
	if err != nil {
		log.Printf("[fbads] fetch winning ads for account %s: %v", c.accountID, err)
		return nil
	}

	// Ad-hoc queries are served fresh and never refresh the shared cache.
	if !f.AdHoc() && len(ads) > 0 {
		if err := c.saveCache(ads); err != nil {
			log.Printf("[fbads] save cache for account %s: %v", c.accountID, err)
		}
	}
	return ads
}

// FetchWinningAds queries the Marketing API and applies the winning-ad
// filter, bypassing the cache entirely.
func (c *Client) FetchWinningAds(ctx context.Context, f Filters) ([]Ad, error) {
	spendMin := c.opts.SpendThreshold
	if f.SpendMin != nil {
		spendMin = *f.SpendMin
	}
	cpaMax := c.opts.CPAThreshold
	if f.CPAMax != nil {
		cpaMax = *f.CPAMax
	}

	until := f.Until
	if until.IsZero() {
		until = time.Now()
	}
	since := f.Since
	if since.IsZero() {
		since = until.AddDate(0, 0, -c.opts.WindowDays)
	}

	active, err := c.listActiveAds(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	log.Printf("[fbads] %d active ads in account %s", len(active), c.accountID)

	names := make(map[string]string, len(active))
	adIDs := make([]string, 0, len(active))
	for _, a := range active {
		names[a.ID] = a.Name
		adIDs = append(adIDs, a.ID)
	}

	creatives, err := c.fetchCreatives(ctx, adIDs)
	if err != nil {
		return nil, err
	}
	if len(creatives) == 0 {
		return nil, nil
	}

	withCreative := make([]string, 0, len(creatives))
	for id := range creatives {
		withCreative = append(withCreative, id)
	}
	sort.Strings(withCreative)

	insights, err := c.fetchInsights(ctx, withCreative, since, until)
	if err != nil {
		return nil, err
	}

	var winning []Ad
	for _, id := range withCreative {
		entry, ok := insights[id]
		if !ok {
			continue
		}
		ins := deriveInsights(entry)

		if ins.Spend < spendMin {
			continue
		}
		if cpaMax > 0 && (ins.CPA <= 0 || ins.CPA > cpaMax) {
			continue
		}
		if f.ROASMin != nil && ins.ROAS < *f.ROASMin {
			continue
		}

		cr := creatives[id].Creative
		winning = append(winning, Ad{
			ID:         id,
			Name:       names[id],
			CreativeID: cr.ID,
			VideoID:    cr.VideoID,
			ImageURL:   cr.ImageURL,
			Insights:   ins,
		})
	}

	winning = c.sorted(winning, f.SortBy)
	log.Printf("[fbads] %d winning ads in account %s", len(winning), c.accountID)
	return winning, nil
}

// deriveInsights converts one raw insight row into the metric set,
// including the two computed video ratios.
func deriveInsights(e insightEntry) *Insights {
	spend := parseFloat(e.Spend)
	impressions := parseFloat(e.Impressions)

	ins := &Insights{
		Spend:                 spend,
		CPM:                   parseFloat(e.CPM),
		UniqueCTR:             parseFloat(e.UniqueCTR),
		Frequency:             parseFloat(e.Frequency),
		CPA:                   actionFloat(e.CostPerActionType, "purchase"),
		WebsitePurchasesValue: actionFloat(e.ActionValues, "purchase"),
		WebsitePurchases:      int(actionFloat(e.Actions, "purchase")),
	}

	if len(e.PurchaseROAS) > 0 {
		ins.ROAS = parseFloat(e.PurchaseROAS[0].Value)
	}

	views3s := actionFloat(e.VideoPlayActions, "video_view")
	thruPlays := actionFloat(e.VideoThruplay, "video_view")
	if impressions > 0 {
		ins.HookRate = views3s / impressions * 100
	}
	if views3s > 0 {
		ins.HoldRate = thruPlays / views3s * 100
	}
	return ins
}

// sorted orders ads by the requested ranking criterion.
func (c *Client) sorted(ads []Ad, sortBy string) []Ad {
	if sortBy == "" {
		sortBy = c.opts.SortBy
	}
	switch sortBy {
	case SortCPAAsc:
		sort.SliceStable(ads, func(i, j int) bool {
			return ads[i].cpa() < ads[j].cpa()
		})
	default: // SortROASDesc
		sort.SliceStable(ads, func(i, j int) bool {
			return ads[i].roas() > ads[j].roas()
		})
	}
	return ads
}

func actionFloat(actions []actionValue, actionType string) float64 {
	for _, a := range actions {
		if a.ActionType == actionType {
			return parseFloat(a.Value)
		}
	}
	return 0
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
