package resolve

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type redditResolver struct {
	fetch *fetcher
}

type redditListing []struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title     string `json:"title"`
	Selftext  string `json:"selftext"`
	Author    string `json:"author"`
	Subreddit string `json:"subreddit"`
	Score     int    `json:"score"`
}

// Resolve reads the post through the public .json endpoint and falls back
// to scraping the HTML page.
func (r *redditResolver) Resolve(ctx context.Context, u *url.URL) (string, error) {
	if post, ok := r.fromJSON(ctx, u); ok {
		return formatRedditPost(post, true), nil
	}

	body, err := r.fetch.get(ctx, u.String(), nil)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return formatRedditPost(redditPostFromHTML(doc), false), nil
}

func (r *redditResolver) fromJSON(ctx context.Context, u *url.URL) (redditPost, bool) {
	ju := *u
	ju.RawQuery = ""
	ju.Fragment = ""
	ju.Path = strings.TrimSuffix(ju.Path, "/") + ".json"

	var listing redditListing
	if err := r.fetch.getJSON(ctx, ju.String(), nil, &listing); err != nil {
		return redditPost{}, false
	}
	if len(listing) == 0 || len(listing[0].Data.Children) == 0 {
		return redditPost{}, false
	}
	post := listing[0].Data.Children[0].Data
	if post.Title == "" {
		post.Title = "No title found"
	}
	return post, true
}

func redditPostFromHTML(doc *goquery.Document) redditPost {
	post := redditPost{Title: strings.TrimSpace(doc.Find("h1").First().Text())}
	if post.Title == "" {
		post.Title = "No title found"
	}

	for _, sel := range []string{
		`div[data-test-id="post-content"]`,
		`div[slot="text-body"]`,
		"div.expando",
		"div.usertext-body",
	} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			post.Selftext = strings.TrimSpace(s.Text())
			break
		}
	}

	post.Author = strings.TrimSpace(doc.Find(`a[href*="/user/"]`).First().Text())
	post.Subreddit = strings.TrimSpace(doc.Find(`a[href^="/r/"]`).First().Text())
	return post
}

// formatRedditPost renders the post; api marks JSON data, whose author and
// subreddit lack the u/ and r/ prefixes.
func formatRedditPost(p redditPost, api bool) string {
	var meta []string
	if p.Author != "" {
		if api {
			meta = append(meta, "Posted by u/"+p.Author)
		} else {
			meta = append(meta, "Posted by "+p.Author)
		}
	}
	if p.Subreddit != "" {
		if api {
			meta = append(meta, "in r/"+p.Subreddit)
		} else {
			meta = append(meta, "in "+p.Subreddit)
		}
	}
	if p.Score != 0 {
		meta = append(meta, fmt.Sprintf("(%d points)", p.Score))
	}

	lines := []string{"# " + p.Title}
	if len(meta) > 0 {
		lines = append(lines, strings.Join(meta, " "))
	}
	lines = append(lines, "")
	if p.Selftext != "" {
		lines = append(lines, p.Selftext)
	} else {
		lines = append(lines, "(No body text found)")
	}
	return strings.Join(lines, "\n")
}
