package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultAuthorName is stored when a debate is submitted without an author.
const DefaultAuthorName = "Imuhira Staff"

// Status is the publication state of a debate.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished:
		return true
	}
	return false
}

// Faction is the side an argument was made for.
// Idubu argues the pro-Twirwaneho side, Akagara the pro-government side.
type Faction string

const (
	FactionIdubu   Faction = "idubu"
	FactionAkagara Faction = "akagara"
)

func (f Faction) Valid() bool {
	switch f {
	case FactionIdubu, FactionAkagara:
		return true
	}
	return false
}

type Debate struct {
	ID                int64      `json:"id" db:"id"`
	Title             string     `json:"title" db:"title"`
	Slug              string     `json:"slug" db:"slug"`
	Topic             string     `json:"topic" db:"topic"`
	Summary           *string    `json:"summary" db:"summary"`
	Verdict           string     `json:"verdict" db:"verdict"`
	YoutubeVideoID    *string    `json:"youtubeVideoId" db:"youtube_video_id"`
	YoutubeVideoTitle *string    `json:"youtubeVideoTitle" db:"youtube_video_title"`
	MainImageURL      *string    `json:"mainImageUrl" db:"main_image_url"`
	AuthorName        string     `json:"authorName" db:"author_name"`
	Status            Status     `json:"status" db:"status"`
	CreatedAt         time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time  `json:"updatedAt" db:"updated_at"`
	PublishedAt       *time.Time `json:"publishedAt" db:"published_at"`
}

// DebateWithArguments is the shape every debate endpoint responds with.
type DebateWithArguments struct {
	Debate
	Arguments FactionArguments `json:"arguments"`
}

// DebateRequest is the body of both create and update. Update overwrites
// every scalar field, so the two share a shape.
type DebateRequest struct {
	Title             string          `json:"title"`
	Slug              string          `json:"slug"`
	Topic             string          `json:"topic"`
	Summary           *string         `json:"summary,omitempty"`
	Verdict           string          `json:"verdict"`
	YoutubeVideoID    *string         `json:"youtubeVideoId,omitempty"`
	YoutubeVideoTitle *string         `json:"youtubeVideoTitle,omitempty"`
	MainImageURL      *string         `json:"mainImageUrl,omitempty"`
	AuthorName        string          `json:"authorName,omitempty"`
	Status            Status          `json:"status,omitempty"`
	IdubuArguments    []ArgumentInput `json:"idubuArguments,omitempty"`
	AkagaraArguments  []ArgumentInput `json:"akagaraArguments,omitempty"`
}

// ErrMissingRequiredFields is returned by Validate when any of title, slug,
// topic or verdict is blank.
var ErrMissingRequiredFields = errors.New("missing required fields: title, slug, topic, and verdict are required")

// Validate checks required fields and enum values
func (r *DebateRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" ||
		strings.TrimSpace(r.Slug) == "" ||
		strings.TrimSpace(r.Topic) == "" ||
		strings.TrimSpace(r.Verdict) == "" {
		return ErrMissingRequiredFields
	}
	if r.Status != "" && !r.Status.Valid() {
		return fmt.Errorf("invalid status %q", r.Status)
	}
	return nil
}

// Normalize trims the title and slug and fills the defaults applied on
// every write.
func (r *DebateRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Slug = strings.TrimSpace(r.Slug)
	if r.AuthorName == "" {
		r.AuthorName = DefaultAuthorName
	}
	if r.Status == "" {
		r.Status = StatusDraft
	}
}

// ResolvePublishedAt returns the publish stamp a debate should carry after a
// write with the given status. The first publish stamps now; later publishes
// keep the existing stamp; a draft carries none.
func ResolvePublishedAt(status Status, existing *time.Time, now time.Time) *time.Time {
	if status != StatusPublished {
		return nil
	}
	if existing != nil {
		return existing
	}
	return &now
}
