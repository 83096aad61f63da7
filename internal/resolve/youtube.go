package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
)

const youtubeWatchURL = "https://www.youtube.com/watch"

var errNoCaptions = errors.New("video has no captions or subtitles available")

type youtubeResolver struct {
	fetch *fetcher
	// watchURL overrides the watch page endpoint.
	watchURL string
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type transcriptXML struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Text  string  `xml:",chardata"`
	} `xml:"text"`
}

func (r *youtubeResolver) Resolve(ctx context.Context, u *url.URL) (string, error) {
	id := youtubeVideoID(u)
	if id == "" {
		return "", fmt.Errorf("%w: could not extract video id", ErrInvalidURL)
	}

	watch := r.watchURL
	if watch == "" {
		watch = youtubeWatchURL
	}
	page, err := r.fetch.get(ctx, watch+"?v="+url.QueryEscape(id), nil)
	if err != nil {
		return "", fmt.Errorf("fetch watch page: %w", err)
	}

	tracks, err := captionTracks(page)
	if err != nil {
		return "", err
	}
	track := pickCaptionTrack(tracks)

	raw, err := r.fetch.get(ctx, track.BaseURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch captions: %w", err)
	}
	var transcript transcriptXML
	if err := xml.Unmarshal(raw, &transcript); err != nil {
		return "", fmt.Errorf("decode captions: %w", err)
	}
	if len(transcript.Texts) == 0 {
		return "", errNoCaptions
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# YouTube Transcript: %s\n\n", id)
	fmt.Fprintf(&sb, "**URL:** %s\n\n---\n\n## Transcript\n\n", u.String())
	for _, t := range transcript.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Text))
		if text == "" {
			continue
		}
		fmt.Fprintf(&sb, "**[%s]** %s\n\n", formatTimestamp(t.Start), text)
	}
	return sb.String(), nil
}

// youtubeVideoID handles youtu.be/<id>, watch?v=<id>, /embed/<id> and /shorts/<id>.
func youtubeVideoID(u *url.URL) string {
	path := strings.Trim(u.Path, "/")
	if strings.HasSuffix(strings.ToLower(u.Hostname()), "youtu.be") {
		id, _, _ := strings.Cut(path, "/")
		return id
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	for _, prefix := range []string{"embed/", "shorts/"} {
		if rest, ok := strings.CutPrefix(path, prefix); ok {
			id, _, _ := strings.Cut(rest, "/")
			return id
		}
	}
	return ""
}

// captionTracks decodes the captionTracks array embedded in the watch page.
func captionTracks(page []byte) ([]captionTrack, error) {
	const marker = `"captionTracks":`
	idx := bytes.Index(page, []byte(marker))
	if idx < 0 {
		return nil, errNoCaptions
	}

	var tracks []captionTrack
	dec := json.NewDecoder(bytes.NewReader(page[idx+len(marker):]))
	if err := dec.Decode(&tracks); err != nil {
		return nil, fmt.Errorf("decode caption tracks: %w", err)
	}
	if len(tracks) == 0 {
		return nil, errNoCaptions
	}
	return tracks, nil
}

// pickCaptionTrack prefers manual English captions, then any English track.
func pickCaptionTrack(tracks []captionTrack) captionTrack {
	for _, t := range tracks {
		if strings.HasPrefix(t.LanguageCode, "en") && t.Kind != "asr" {
			return t
		}
	}
	for _, t := range tracks {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t
		}
	}
	return tracks[0]
}

// formatTimestamp renders seconds as MM:SS, or HH:MM:SS past the hour.
func formatTimestamp(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
