// Package newsfeed imports RSS/Atom items as rows of the news collection.
package newsfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/tradexpert/whatsnew-admin/internal/dates"
	"github.com/tradexpert/whatsnew-admin/internal/richtext"
	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
	"github.com/tradexpert/whatsnew-admin/pkg/logger"
)

var (
	ErrNoFeeds        = errors.New("no feeds given")
	ErrAllFeedsFailed = errors.New("every feed failed")
)

const maxDescriptionRunes = 600

// Item is one feed entry reduced to what a news row carries.
type Item struct {
	Feed        string
	Title       string
	Description string
	Link        string
	Published   *time.Time
}

// Fetcher reads feeds over HTTP.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewFetcher returns a fetcher; httpClient may be nil.
func NewFetcher(httpClient *http.Client, timeout time.Duration) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{client: httpClient, timeout: timeout}
}

// Fetch parses one feed.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	p := gofeed.NewParser()
	p.Client = f.client
	p.UserAgent = "whatsnew-admin/1.0"
	feed, err := p.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}
	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		if strings.TrimSpace(it.Title) == "" {
			continue
		}
		desc := it.Description
		if desc == "" {
			desc = it.Content
		}
		item := Item{
			Feed:        url,
			Title:       strings.TrimSpace(it.Title),
			Description: richtext.Excerpt(desc, maxDescriptionRunes),
			Link:        it.Link,
		}
		switch {
		case it.PublishedParsed != nil:
			item.Published = it.PublishedParsed
		case it.UpdatedParsed != nil:
			item.Published = it.UpdatedParsed
		}
		items = append(items, item)
	}
	return items, nil
}

// FetchAll reads feeds concurrently. A failing feed is logged and skipped;
// the call fails only when every feed failed. Items are newest first and at
// most limit long (limit <= 0 keeps all).
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, limit int) ([]Item, error) {
	if len(urls) == 0 {
		return nil, ErrNoFeeds
	}
	results := make([][]Item, len(urls))
	var mu sync.Mutex
	var errs []error

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			items, err := f.Fetch(gctx, u)
			if err != nil {
				logger.Warnf("news import: %v", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == len(urls) {
		return nil, fmt.Errorf("%w: %w", ErrAllFeedsFailed, errors.Join(errs...))
	}

	var all []Item
	for _, items := range results {
		all = append(all, items...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i].Published, all[j].Published
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ToRows converts items to news rows in edit format. The publication day is
// the feed's own calendar day; undated items get an empty pubDate so that
// submit drops them unless an editor fills one in.
func ToRows(items []Item) []whatsnew.Row {
	tmpl, _ := whatsnew.Template("news")
	rows := make([]whatsnew.Row, 0, len(items))
	for _, it := range items {
		r := tmpl.Copy()
		r.Fields["title"] = it.Title
		r.Fields["description"] = it.Description
		if it.Published != nil {
			r.Fields["pubDate"] = it.Published.Format(dates.EditLayout)
		}
		rows = append(rows, r)
	}
	return rows
}
