package testsupport

import (
	"fmt"
	"time"

	"shotsync/internal/project"
)

// ProjectOption customizes NewProject.
type ProjectOption func(*project.Data)

// NewProject builds a one-page project with shotCount shots named s1..sN.
// Shots carry hosted URLs unless WithInlineImages is given.
func NewProject(id, name string, shotCount int, opts ...ProjectOption) *project.Data {
	data := &project.Data{
		SchemaVersion: project.SchemaVersion,
		ID:            id,
		Name:          name,
		Pages:         map[string]project.Page{"pg1": {ID: "pg1", Name: "Page 1", Order: 0}},
		Shots:         make(map[string]project.Shot, shotCount),
		LastModified:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	for i := 1; i <= shotCount; i++ {
		sid := fmt.Sprintf("s%d", i)
		data.Shots[sid] = project.Shot{
			ID:          sid,
			PageID:      "pg1",
			Order:       i,
			ImageURL:    fmt.Sprintf("mem://%s/%s", id, sid),
			ContentType: "image/png",
		}
	}
	for _, opt := range opts {
		opt(data)
	}
	return data
}

// WithInlineImages replaces every hosted URL with embedded bytes.
func WithInlineImages() ProjectOption {
	return func(d *project.Data) {
		seed := byte(1)
		for id, shot := range d.Shots {
			shot.ImageURL = ""
			shot.InlineImage = Bytes(64, seed)
			seed++
			d.Shots[id] = shot
		}
	}
}

// WithLastModified sets the project timestamp.
func WithLastModified(ts time.Time) ProjectOption {
	return func(d *project.Data) {
		d.LastModified = ts
	}
}

// WithoutShots clears the shot map while keeping it present.
func WithoutShots() ProjectOption {
	return func(d *project.Data) {
		d.Shots = map[string]project.Shot{}
	}
}
