package models

import (
	"path/filepath"
	"strings"
)

// Category is a placement namespace under <owner>/processed/.
type Category string

const (
	CategoryDocs  Category = "docs"
	CategoryMedia Category = "media"
	CategoryLinks Category = "links"
)

// Categories lists every category in listing order.
var Categories = []Category{CategoryDocs, CategoryMedia, CategoryLinks}

// ParseCategory validates a category name coming from a client.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

var mediaExtensions = map[string]bool{
	".mp3":  true,
	".mp4":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".webm": true,
	".mov":  true,
	".mkv":  true,
	".flac": true,
	".aac":  true,
}

// IsMedia reports whether a file name has an audio or video extension.
func IsMedia(name string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(name))]
}

// CategoryForFile picks media for audio/video extensions and docs otherwise.
func CategoryForFile(name string) Category {
	if IsMedia(name) {
		return CategoryMedia
	}
	return CategoryDocs
}

// ItemKind distinguishes uploaded files from links.
type ItemKind string

const (
	KindFile ItemKind = "file"
	KindLink ItemKind = "link"
)

// Item is one unit of work handed to the orchestrator.
type Item struct {
	Kind         ItemKind
	OriginalName string
	// StagedPath is where an uploaded file waits before placement. Empty for links.
	StagedPath string
	// URL is the parsed-from-OriginalName link target. Empty for files.
	URL string
}

// FileItem builds an item for an uploaded file waiting at stagedPath.
func FileItem(originalName, stagedPath string) Item {
	return Item{Kind: KindFile, OriginalName: originalName, StagedPath: stagedPath}
}

// LinkItem builds an item for a URL. The URL doubles as the original name.
func LinkItem(url string) Item {
	return Item{Kind: KindLink, OriginalName: url, URL: url}
}

// Category returns the placement category of the item.
func (it Item) Category() Category {
	if it.Kind == KindLink {
		return CategoryLinks
	}
	return CategoryForFile(it.OriginalName)
}

// FallbackName is used when a proposed name sanitizes to nothing.
func (it Item) FallbackName() string {
	if it.Kind == KindLink {
		return "link"
	}
	return "file"
}

// ItemState is the per-item pipeline state.
type ItemState string

const (
	ItemPending     ItemState = "pending"
	ItemExtracting  ItemState = "extracting"
	ItemClassifying ItemState = "classifying"
	ItemPlacing     ItemState = "placing"
	ItemDone        ItemState = "done"
	ItemFailed      ItemState = "failed"
)

// MetadataRecord is the JSON sidecar written next to every placed item.
type MetadataRecord struct {
	OldName string   `json:"old_name"`
	Name    string   `json:"name"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// ProcessedFile is a metadata record as listed from the processed store.
type ProcessedFile struct {
	MetadataRecord
	Category Category `json:"type"`
	// ResolvedName is the sidecar path relative to the processed root.
	ResolvedName string `json:"resolved_name"`
}
