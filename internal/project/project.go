// Package project defines the project record the sync engines move between
// the local durable store and the remote record service, along with the
// summary kept for reconciliation bookkeeping.
package project

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// SchemaVersion is the version written by Encode.
const SchemaVersion = 2

// Page groups shots.
type Page struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Shot is a single storyboard frame. A shot's image is either hosted
// (ImageURL) or carried inline (InlineImage) until it has been uploaded.
type Shot struct {
	ID          string `json:"id"`
	PageID      string `json:"pageId,omitempty"`
	Order       int    `json:"order"`
	Caption     string `json:"caption,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	InlineImage []byte `json:"inlineImage,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// HasInlineImage reports whether the shot still embeds its image bytes.
func (s Shot) HasInlineImage() bool { return len(s.InlineImage) > 0 }

// Settings holds project-level presentation settings that reference assets.
type Settings struct {
	LogoURL     string `json:"logoUrl,omitempty"`
	InlineLogo  []byte `json:"inlineLogo,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// Data is a full project snapshot. Nil Pages and Shots mean the fields were
// absent from the source document, which is distinct from an empty project.
type Data struct {
	SchemaVersion int             `json:"schemaVersion"`
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Pages         map[string]Page `json:"pages"`
	Shots         map[string]Shot `json:"shots"`
	Settings      Settings        `json:"settings"`
	LastModified  time.Time       `json:"lastModified"`
}

func (d *Data) ShotCount() int {
	if d == nil {
		return 0
	}
	return len(d.Shots)
}

func (d *Data) PageCount() int {
	if d == nil {
		return 0
	}
	return len(d.Pages)
}

// Shapeless reports whether the snapshot carries neither pages nor shots.
func (d *Data) Shapeless() bool {
	return d == nil || (d.Pages == nil && d.Shots == nil)
}

// HasShot reports whether shotID is present in the snapshot.
func (d *Data) HasShot(shotID string) bool {
	if d == nil {
		return false
	}
	_, ok := d.Shots[shotID]
	return ok
}

// OrderedShots returns the shots sorted by page order, shot order, then id.
func (d *Data) OrderedShots() []Shot {
	if d == nil {
		return nil
	}
	shots := slices.Collect(maps.Values(d.Shots))
	slices.SortFunc(shots, func(a, b Shot) int {
		pa, pb := d.Pages[a.PageID].Order, d.Pages[b.PageID].Order
		if pa != pb {
			return pa - pb
		}
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return strings.Compare(a.ID, b.ID)
	})
	return shots
}

// InlineShots returns the ordered shots whose image is embedded and not yet
// hosted. Hydrated shots carry both and are excluded.
func (d *Data) InlineShots() []Shot {
	var out []Shot
	for _, shot := range d.OrderedShots() {
		if shot.HasInlineImage() && shot.ImageURL == "" {
			out = append(out, shot)
		}
	}
	return out
}

// Clone returns a copy whose maps and byte slices are not shared with d.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	out := *d
	if d.Pages != nil {
		out.Pages = maps.Clone(d.Pages)
	}
	if d.Shots != nil {
		out.Shots = make(map[string]Shot, len(d.Shots))
		for id, shot := range d.Shots {
			shot.InlineImage = slices.Clone(shot.InlineImage)
			out.Shots[id] = shot
		}
	}
	out.Settings.InlineLogo = slices.Clone(d.Settings.InlineLogo)
	return &out
}

// Summary is the bookkeeping entry kept per project in the local index.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ShotCount    int       `json:"shotCount"`
	LastModified time.Time `json:"lastModified"`
	IsLocal      bool      `json:"isLocal"`
	IsCloudOnly  bool      `json:"isCloudOnly"`
}

// ReconcileCandidate reports whether the project should be considered when
// pushing local work to the remote record service.
func (s Summary) ReconcileCandidate() bool {
	return s.IsLocal && !s.IsCloudOnly && s.ShotCount > 0
}

// Summarize builds a summary from a snapshot.
func (d *Data) Summarize(isLocal, isCloudOnly bool) Summary {
	return Summary{
		ID:           d.ID,
		Name:         d.Name,
		ShotCount:    d.ShotCount(),
		LastModified: d.LastModified,
		IsLocal:      isLocal,
		IsCloudOnly:  isCloudOnly,
	}
}
