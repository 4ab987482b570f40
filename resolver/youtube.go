package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"cryogon/rizumu-fetch/downloader"
	"cryogon/rizumu-fetch/media"
	"cryogon/rizumu-fetch/utils"

	"go.uber.org/zap"
)

const youtubeSearchURL = "https://www.youtube.com/results"

var (
	initialDataRegex      = regexp.MustCompile(`(?s)var ytInitialData = (\{.*?\});\s*</script>`)
	initialDataLooseRegex = regexp.MustCompile(`(?s)var ytInitialData = (\{.*?\});`)
)

type textRuns struct {
	Runs []struct {
		Text string `json:"text"`
	} `json:"runs"`
	SimpleText string `json:"simpleText"`
}

func (t textRuns) String() string {
	if len(t.Runs) > 0 {
		return t.Runs[0].Text
	}
	return t.SimpleText
}

type videoRenderer struct {
	VideoID   string   `json:"videoId"`
	Title     textRuns `json:"title"`
	OwnerText textRuns `json:"ownerText"`
	Thumbnail struct {
		Thumbnails []struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"thumbnail"`
	LengthText *textRuns `json:"lengthText"`
}

type initialData struct {
	Contents struct {
		TwoColumnSearchResultsRenderer struct {
			PrimaryContents struct {
				SectionListRenderer struct {
					Contents []struct {
						ItemSectionRenderer struct {
							Contents []struct {
								VideoRenderer *videoRenderer `json:"videoRenderer"`
							} `json:"contents"`
						} `json:"itemSectionRenderer"`
					} `json:"contents"`
				} `json:"sectionListRenderer"`
			} `json:"primaryContents"`
		} `json:"twoColumnSearchResultsRenderer"`
	} `json:"contents"`
}

// YouTubeSearch scrapes the YouTube results page. It needs no API key.
// maxPageSize caps how much of a results page is read; real pages are about 1 MB.
const maxPageSize = 8 << 20

type YouTubeSearch struct {
	client   *http.Client
	baseURL  string
	maxBytes int64
	log      *zap.Logger
}

func NewYouTubeSearch(client *http.Client, log *zap.Logger) *YouTubeSearch {
	return &YouTubeSearch{
		client:   client,
		baseURL:  youtubeSearchURL,
		maxBytes: maxPageSize,
		log:      log.Named("youtube"),
	}
}

// Search returns up to limit videos (limit <= 0: all on the first page) in
// page order. Ads, channels, shelves and playlists are skipped.
func (y *YouTubeSearch) Search(ctx context.Context, query string, limit int) ([]media.Descriptor, error) {
	u := y.baseURL + "?search_query=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &downloader.TransientFetchError{Source: "youtube", Err: err}
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, &downloader.TransientFetchError{Source: "youtube", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &downloader.TransientFetchError{Source: "youtube", Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, y.maxBytes+1))
	if err != nil {
		return nil, &downloader.TransientFetchError{Source: "youtube", Err: err}
	}
	if int64(len(body)) > y.maxBytes {
		return nil, &downloader.TransientFetchError{Source: "youtube", Err: fmt.Errorf("results page larger than %d bytes", y.maxBytes)}
	}

	results, err := parseSearchPage(body, limit)
	if err != nil {
		return nil, &downloader.TransientFetchError{Source: "youtube", Err: err}
	}
	y.log.Debug("search", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

func parseSearchPage(page []byte, limit int) ([]media.Descriptor, error) {
	m := initialDataRegex.FindSubmatch(page)
	if m == nil {
		m = initialDataLooseRegex.FindSubmatch(page)
	}
	if m == nil {
		return nil, errors.New("no ytInitialData in page")
	}

	var data initialData
	if err := json.Unmarshal(m[1], &data); err != nil {
		return nil, fmt.Errorf("parse ytInitialData: %w", err)
	}

	results := []media.Descriptor{}
	sections := data.Contents.TwoColumnSearchResultsRenderer.PrimaryContents.SectionListRenderer.Contents
	for _, section := range sections {
		for _, item := range section.ItemSectionRenderer.Contents {
			v := item.VideoRenderer
			if v == nil || v.VideoID == "" {
				continue
			}
			results = append(results, descriptorFromRenderer(v))
			if limit > 0 && len(results) == limit {
				return results, nil
			}
		}
	}
	return results, nil
}

func descriptorFromRenderer(v *videoRenderer) media.Descriptor {
	d := media.Descriptor{
		SourceID: v.VideoID,
		Title:    v.Title.String(),
		Author:   v.OwnerText.String(),
		Duration: "LIVE",
		Platform: media.PlatformYouTube,
	}
	d.URL, _ = utils.GetSourceURL(utils.SourceYouTube, v.VideoID)
	if thumbs := v.Thumbnail.Thumbnails; len(thumbs) > 0 {
		d.ThumbnailURL = thumbs[len(thumbs)-1].URL
	}
	if v.LengthText != nil && v.LengthText.String() != "" {
		d.Duration = v.LengthText.String()
	}
	return d
}
