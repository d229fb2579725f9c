// Package prompt builds the model request for a journal analysis call. The
// builder is deterministic: the same inputs always produce the same request,
// and nothing is ever fabricated beyond the supplied text, photos, history
// and profile.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/halcyonlabs/reverie/pkg/models"
)

// Defaults for the bounded context window.
const (
	DefaultHistoryWindow = 10
	DefaultTruncateAt    = 450
)

const (
	noTextMarker    = "(no text provided for this entry)"
	noProfileMarker = "No pattern profile exists yet. This is the first analyzed entry; create the initial profile from the evidence in this submission alone."
)

// ErrNoContent is returned when there is nothing to analyze: empty or
// whitespace-only text and no photos in either batch. This check runs
// before anything else, in particular before any network call.
var ErrNoContent = errors.New("no content to analyze")

// Options bounds the rendered context. Zero values take the defaults.
type Options struct {
	HistoryWindow int
	TruncateAt    int
}

// Part is one ordered element of the request: either a text segment or a
// binary image attachment.
type Part struct {
	Text  string
	Image *models.Photo
}

// Request is a model-ready analysis request.
type Request struct {
	Instructions  string
	Parts         []Part
	TokenEstimate int
}

// Build renders the current submission, the bounded history window and the
// previous profile into a request. Validation happens first: with no text
// and no photos there is nothing to send.
func Build(text string, journalPhotos, spacePhotos []models.Photo, history []models.JournalEntry, profile *models.PatternProfile, opts Options) (*Request, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" && len(journalPhotos) == 0 && len(spacePhotos) == 0 {
		return nil, ErrNoContent
	}

	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if opts.TruncateAt <= 0 {
		opts.TruncateAt = DefaultTruncateAt
	}

	var sb strings.Builder

	sb.WriteString("PREVIOUS PATTERN PROFILE\n")
	sb.WriteString("========================\n")
	sb.WriteString(renderProfile(profile))
	sb.WriteString("\n\n")

	sb.WriteString("RECENT ENTRIES (most recent first)\n")
	sb.WriteString("==================================\n")
	sb.WriteString(renderHistory(history, opts))
	sb.WriteString("\n\n")

	sb.WriteString("CURRENT ENTRY\n")
	sb.WriteString("=============\n")
	if trimmed == "" {
		sb.WriteString(noTextMarker)
	} else {
		sb.WriteString(text)
	}

	parts := []Part{{Text: sb.String()}}
	parts = appendPhotoParts(parts, journalPhotos, "Journal photo",
		"a photographed page of the writer's handwritten or typed journal")
	parts = appendPhotoParts(parts, spacePhotos, "Space photo",
		"the writer's current physical environment")

	req := &Request{
		Instructions: systemInstruction,
		Parts:        parts,
	}
	req.TokenEstimate = estimateRequestTokens(req)
	return req, nil
}

// renderProfile renders the previous profile as-is in structured form, or
// an explicit marker when none exists, so the model never has to guess.
func renderProfile(profile *models.PatternProfile) string {
	if profile == nil {
		return noProfileMarker
	}
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return noProfileMarker
	}
	return string(data)
}

// renderHistory renders at most the HistoryWindow most recent entries,
// most-recent-first. Older entries are excluded entirely; each selected
// entry's text is truncated to the TruncateAt prefix with an explicit
// marker so the model knows the snippet is incomplete.
func renderHistory(history []models.JournalEntry, opts Options) string {
	if len(history) == 0 {
		return "(no prior entries)"
	}

	window := history
	if len(window) > opts.HistoryWindow {
		window = window[len(window)-opts.HistoryWindow:]
	}

	var sb strings.Builder
	for i := len(window) - 1; i >= 0; i-- {
		entry := window[i]
		fmt.Fprintf(&sb, "Entry from %s:\n", entry.Timestamp)
		if strings.TrimSpace(entry.Text) == "" {
			sb.WriteString(noTextMarker)
		} else {
			sb.WriteString(truncate(entry.Text, opts.TruncateAt))
		}
		if entry.JournalPhotoCount > 0 || entry.SpacePhotoCount > 0 {
			fmt.Fprintf(&sb, "\n[submitted with %d journal photo(s), %d space photo(s)]",
				entry.JournalPhotoCount, entry.SpacePhotoCount)
		}
		if i > 0 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

// appendPhotoParts emits each photo preceded by a caption naming its
// category. The caption is load-bearing: it is the only signal the model
// has to tell journal-page images from environment images.
func appendPhotoParts(parts []Part, photos []models.Photo, label, description string) []Part {
	for i := range photos {
		caption := fmt.Sprintf("%s %d of %d: %s.", label, i+1, len(photos), description)
		parts = append(parts, Part{Text: caption})
		parts = append(parts, Part{Image: &photos[i]})
	}
	return parts
}

// truncate returns at most max bytes of s, marking the cut explicitly.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... (truncated)"
}
