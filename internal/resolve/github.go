package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/time/rate"
)

const (
	// githubTreeDepth is the deepest directory level listed in the tree.
	githubTreeDepth = 2

	// githubRate throttles API calls (~4 req/sec) with a small burst for
	// the tree walk.
	githubRate  = 250 * time.Millisecond
	githubBurst = 10
)

type githubResolver struct {
	client  *gh.Client
	limiter *rate.Limiter
}

// newGitHubResolver creates the repository resolver. baseURL overrides the
// API endpoint and must end with a slash.
func newGitHubResolver(token string, httpClient *http.Client, baseURL string) *githubResolver {
	client := gh.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if baseURL != "" {
		if u, err := url.Parse(baseURL); err == nil {
			client.BaseURL = u
		}
	}
	return &githubResolver{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(githubRate), githubBurst),
	}
}

func (r *githubResolver) Resolve(ctx context.Context, u *url.URL) (string, error) {
	owner, name, err := githubRepoFromPath(u.Path)
	if err != nil {
		return "", err
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	repo, _, err := r.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return "", wrapGitHubError(err, "get repo")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Repository: %s/%s\n\n", owner, name)
	fmt.Fprintf(&sb, "**URL:** https://github.com/%s/%s\n\n", owner, name)
	desc := repo.GetDescription()
	if desc == "" {
		desc = "*No description*"
	}
	fmt.Fprintf(&sb, "**Description:** %s\n\n---\n\n", desc)

	sb.WriteString("## README\n\n")
	if readme, err := r.readme(ctx, owner, name); err == nil && readme != "" {
		sb.WriteString(readme)
		sb.WriteString("\n\n")
	} else {
		sb.WriteString("*No README found*\n\n")
	}

	sb.WriteString("## Repository Structure\n\n")
	r.tree(ctx, &sb, owner, name, "", 0)

	return sb.String(), nil
}

func (r *githubResolver) readme(ctx context.Context, owner, name string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	content, _, err := r.client.Repositories.GetReadme(ctx, owner, name, nil)
	if err != nil {
		return "", wrapGitHubError(err, "get readme")
	}
	return content.GetContent()
}

// tree writes a nested bullet list of the repository contents. Listing
// errors cut the branch short instead of failing the whole resolve.
func (r *githubResolver) tree(ctx context.Context, sb *strings.Builder, owner, name, path string, depth int) {
	if err := r.limiter.Wait(ctx); err != nil {
		return
	}
	_, entries, _, err := r.client.Repositories.GetContents(ctx, owner, name, path, nil)
	if err != nil {
		return
	}

	indent := strings.Repeat("  ", depth)
	for _, e := range entries {
		fmt.Fprintf(sb, "%s- %s\n", indent, e.GetName())
		if e.GetType() == "dir" && depth < githubTreeDepth {
			r.tree(ctx, sb, owner, name, e.GetPath(), depth+1)
		}
	}
}

// githubRepoFromPath extracts owner and repository from /owner/repo[.git][/...].
func githubRepoFromPath(path string) (string, string, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: expected https://github.com/<owner>/<repo>", ErrInvalidURL)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

func wrapGitHubError(err error, op string) error {
	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
