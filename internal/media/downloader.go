// Package media fetches ad creatives: images over plain HTTP, videos via a
// headless-browser scrape of the public watch page with an HTTP fallback.
package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// defaultWatchURL is the public video watch page.
const defaultWatchURL = "https://www.facebook.com/watch/?v="

// Downloader fetches ad media into a local directory.
type Downloader struct {
	dir      string
	headless bool
	watchURL string
	client   *http.Client
}

// NewDownloader creates a downloader writing into dir.
func NewDownloader(dir string, headless bool) *Downloader {
	return &Downloader{
		dir:      dir,
		headless: headless,
		watchURL: defaultWatchURL,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// DownloadImage streams the creative image to disk and returns the local
// path. The extension comes from the URL path, defaulting to .jpg.
func (d *Downloader) DownloadImage(ctx context.Context, imageURL, adID string) (string, error) {
	log.Printf("[media] downloading image for ad %s", adID)

	ext := path.Ext(strings.SplitN(imageURL, "?", 2)[0])
	if ext == "" {
		ext = ".jpg"
	}
	local := filepath.Join(d.dir, adID+ext)

	if err := d.streamToFile(ctx, imageURL, local); err != nil {
		return "", fmt.Errorf("download image for ad %s: %w", adID, err)
	}
	return local, nil
}

// DownloadVideo resolves the creative's mp4 URL from the watch page and
// streams it to disk.
func (d *Downloader) DownloadVideo(ctx context.Context, videoID, adID string) (string, error) {
	log.Printf("[media] downloading video %s for ad %s", videoID, adID)

	mp4URL, err := d.resolveVideoURL(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("resolve mp4 for video %s: %w", videoID, err)
	}

	local := filepath.Join(d.dir, adID+".mp4")
	if err := d.streamToFile(ctx, mp4URL, local); err != nil {
		return "", fmt.Errorf("download video %s: %w", videoID, err)
	}
	return local, nil
}

// resolveVideoURL tries the browser capture first, then the plain-HTTP
// regex scrape. First candidate wins.
func (d *Downloader) resolveVideoURL(ctx context.Context, videoID string) (string, error) {
	watchURL := d.watchURL + videoID

	url, err := d.captureWithBrowser(ctx, watchURL)
	if err == nil && url != "" {
		return url, nil
	}
	if err != nil {
		log.Printf("[media] browser capture failed for video %s: %v (falling back to HTTP scrape)", videoID, err)
	}

	url, err = d.scrapeWatchPage(ctx, watchURL)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", fmt.Errorf("no mp4 URL found on watch page")
	}
	return url, nil
}

func (d *Downloader) streamToFile(ctx context.Context, rawURL, local string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return err
	}
	f, err := os.Create(local)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(local)
		return err
	}
	return nil
}
