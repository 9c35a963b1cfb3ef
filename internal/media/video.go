package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// captureTimeout bounds how long we wait for the watch page to request
// its mp4 after playback starts.
const captureTimeout = 45 * time.Second

// captureWithBrowser loads the watch page in headless Chrome, starts
// playback, and sniffs network responses for the mp4 the player fetches.
func (d *Downloader) captureWithBrowser(ctx context.Context, watchURL string) (string, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browserOptions(d.headless)...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, captureTimeout)
	defer timeoutCancel()

	found := make(chan string, 1)
	chromedp.ListenTarget(browserCtx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok {
			return
		}
		url := resp.Response.URL
		if strings.Contains(url, ".mp4") && strings.Contains(url, "fbcdn.net") {
			select {
			case found <- url:
			default:
			}
		}
	})

	err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(watchURL),
		chromedp.Sleep(3*time.Second),
		// Kick playback in case autoplay was blocked.
		chromedp.Evaluate(`document.querySelectorAll("video").forEach(v => v.play().catch(() => {}))`, nil),
		chromedp.Sleep(5*time.Second),
	)
	if err != nil && !strings.Contains(err.Error(), "context deadline exceeded") {
		return "", fmt.Errorf("watch page navigation: %w", err)
	}

	select {
	case url := <-found:
		return url, nil
	default:
		return "", nil
	}
}

// mp4Patterns match the video URL fields embedded in the watch page's
// inline JSON. Ordered by preference (HD first).
var mp4Patterns = []*regexp.Regexp{
	regexp.MustCompile(`"browser_native_hd_url":"([^"]+)"`),
	regexp.MustCompile(`"playable_url_quality_hd":"([^"]+)"`),
	regexp.MustCompile(`"playable_url":"([^"]+)"`),
	regexp.MustCompile(`"browser_native_sd_url":"([^"]+)"`),
	regexp.MustCompile(`"src":"(https:[^"]+\.mp4[^"]*)"`),
}

// scrapeWatchPage fetches the watch page over plain HTTP and extracts an
// mp4 URL from the embedded player JSON.
func (d *Downloader) scrapeWatchPage(ctx context.Context, watchURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("watch page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", err
	}

	html := string(body)
	for _, re := range mp4Patterns {
		m := re.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		return unescapeJSONURL(m[1]), nil
	}
	return "", nil
}

// unescapeJSONURL undoes the escaping applied to URLs embedded in the
// page's inline JSON blobs.
func unescapeJSONURL(s string) string {
	s = strings.ReplaceAll(s, `\/`, "/")
	s = strings.ReplaceAll(s, `\u0026`, "&")
	return s
}
