package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const xAPIBaseURL = "https://api.x.com/2"

var statusIDRegex = regexp.MustCompile(`/status/(\d+)`)

type xResolver struct {
	fetch   *fetcher
	token   string
	baseURL string
}

type xTweetResponse struct {
	Data *struct {
		ID            string    `json:"id"`
		Text          string    `json:"text"`
		CreatedAt     time.Time `json:"created_at"`
		PublicMetrics struct {
			LikeCount       int64 `json:"like_count"`
			RetweetCount    int64 `json:"retweet_count"`
			QuoteCount      int64 `json:"quote_count"`
			ImpressionCount int64 `json:"impression_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
	Errors []struct {
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (r *xResolver) Resolve(ctx context.Context, u *url.URL) (string, error) {
	if r.token == "" {
		return "", fmt.Errorf("%w: set X_BEARER_TOKEN", ErrMissingCredentials)
	}
	m := statusIDRegex.FindStringSubmatch(u.Path)
	if m == nil {
		return "", fmt.Errorf("%w: could not extract post id", ErrInvalidURL)
	}
	id := m[1]

	base := r.baseURL
	if base == "" {
		base = xAPIBaseURL
	}
	q := url.Values{}
	q.Set("tweet.fields", "created_at,public_metrics")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username,name")
	endpoint := fmt.Sprintf("%s/tweets/%s?%s", strings.TrimSuffix(base, "/"), id, q.Encode())

	header := http.Header{}
	header.Set("Authorization", "Bearer "+r.token)

	var resp xTweetResponse
	if err := r.fetch.getJSON(ctx, endpoint, header, &resp); err != nil {
		if isAuthError(err) {
			return "", fmt.Errorf("x api rejected the bearer token: %w", err)
		}
		return "", err
	}
	if resp.Data == nil {
		if len(resp.Errors) > 0 {
			return "", fmt.Errorf("%w: post %s: %s", ErrNotFound, id, resp.Errors[0].Detail)
		}
		return "", fmt.Errorf("%w: post %s", ErrNotFound, id)
	}

	authorName, authorUser := "Unknown User", "N/A"
	if len(resp.Includes.Users) > 0 {
		authorName = resp.Includes.Users[0].Name
		authorUser = resp.Includes.Users[0].Username
	}
	posted := "N/A"
	if !resp.Data.CreatedAt.IsZero() {
		posted = resp.Data.CreatedAt.UTC().Format(time.DateTime)
	}

	pm := resp.Data.PublicMetrics
	p := message.NewPrinter(language.English)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# X Post (Tweet ID: %s)\n\n", id)
	fmt.Fprintf(&sb, "**URL:** %s\n\n", u.String())
	fmt.Fprintf(&sb, "**Author:** %s (@%s)\n", authorName, authorUser)
	fmt.Fprintf(&sb, "**Posted:** %s\n", posted)
	sb.WriteString(p.Sprintf("**Metrics:** %d Likes, %d Reposts, %d Quotes, %d Views\n\n",
		pm.LikeCount, pm.RetweetCount, pm.QuoteCount, pm.ImpressionCount))
	sb.WriteString("---\n\n")
	sb.WriteString(resp.Data.Text)
	return sb.String(), nil
}

// isAuthError reports whether err is a rejected bearer token.
func isAuthError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden)
}
