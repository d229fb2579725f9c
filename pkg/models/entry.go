// Package models contains domain models for reverie.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxEntryTextLen is the upper bound on entry text enforced at intake.
const MaxEntryTextLen = 10000

// MaxPhotosPerCategory caps how many photos may be attached per category
// in a single submission.
const MaxPhotosPerCategory = 5

// JournalEntry is one user submission recorded in history. Entries are
// immutable once created and are only removed by a bulk clear. Photo bytes
// are never retained; only the counts survive the call that used them.
type JournalEntry struct {
	ID                string `json:"id"`
	Timestamp         string `json:"timestamp"`
	Text              string `json:"text"`
	JournalPhotoCount int    `json:"journal_photo_count"`
	SpacePhotoCount   int    `json:"space_photo_count"`
}

// NewJournalEntry creates an entry from the current submission inputs with
// a fresh ID and the current time.
func NewJournalEntry(text string, journalPhotos, spacePhotos int) JournalEntry {
	return JournalEntry{
		ID:                uuid.NewString(),
		Timestamp:         time.Now().Format(time.RFC3339),
		Text:              text,
		JournalPhotoCount: journalPhotos,
		SpacePhotoCount:   spacePhotos,
	}
}

// Photo is a transient binary attachment for a single analysis call.
type Photo struct {
	Data []byte
	MIME string
}
