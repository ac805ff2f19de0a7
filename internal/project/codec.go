package project

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"shotsync/internal/services"
)

// v1 documents stored shots and pages as arrays, embedded images under
// "image", and lastModified as epoch milliseconds.
type legacyShot struct {
	ID       string `json:"id"`
	PageID   string `json:"pageId"`
	Order    int    `json:"order"`
	Caption  string `json:"caption"`
	Image    []byte `json:"image"`
	ImageURL string `json:"imageUrl"`
}

type legacyData struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Pages       []Page       `json:"pages"`
	Shots       []legacyShot `json:"shots"`
	Settings    struct {
		Logo        []byte `json:"logo"`
		LogoURL     string `json:"logoUrl"`
		AspectRatio string `json:"aspectRatio"`
	} `json:"settings"`
	LastModified int64 `json:"lastModified"`
}

// Decode parses a project document of any known schema version, migrates it
// to the current version, and validates it. Errors are marked with
// services.ErrValidation.
func Decode(raw []byte) (*Data, error) {
	var envelope struct {
		SchemaVersion int `json:"schemaVersion"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, services.Wrap(services.ErrValidation, "project", "decode", "malformed document", err)
	}

	var (
		data *Data
		err  error
	)
	switch envelope.SchemaVersion {
	case 0, 1:
		data, err = decodeV1(raw)
	case SchemaVersion:
		data = &Data{}
		err = json.Unmarshal(raw, data)
	default:
		return nil, services.Wrap(services.ErrValidation, "project", "decode",
			fmt.Sprintf("unsupported schema version %d", envelope.SchemaVersion), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "project", "decode", "malformed document", err)
	}
	data.SchemaVersion = SchemaVersion
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

// Encode serializes d at the current schema version.
func Encode(d *Data) ([]byte, error) {
	if d == nil {
		return nil, services.Wrap(services.ErrValidation, "project", "encode", "nil project", nil)
	}
	out := *d
	out.SchemaVersion = SchemaVersion
	return json.Marshal(&out)
}

func decodeV1(raw []byte) (*Data, error) {
	var legacy legacyData
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, err
	}
	data := &Data{
		ID:          legacy.ID,
		Name:        legacy.Name,
		Description: legacy.Description,
		Settings: Settings{
			LogoURL:     legacy.Settings.LogoURL,
			InlineLogo:  legacy.Settings.Logo,
			AspectRatio: legacy.Settings.AspectRatio,
		},
	}
	if legacy.LastModified > 0 {
		data.LastModified = time.UnixMilli(legacy.LastModified).UTC()
	}
	if legacy.Pages != nil {
		data.Pages = make(map[string]Page, len(legacy.Pages))
		for _, page := range legacy.Pages {
			data.Pages[page.ID] = page
		}
	}
	if legacy.Shots != nil {
		data.Shots = make(map[string]Shot, len(legacy.Shots))
		for _, shot := range legacy.Shots {
			data.Shots[shot.ID] = Shot{
				ID:          shot.ID,
				PageID:      shot.PageID,
				Order:       shot.Order,
				Caption:     shot.Caption,
				ImageURL:    shot.ImageURL,
				InlineImage: shot.Image,
			}
		}
	}
	return data, nil
}

// Validate checks identifiers and map keys. Missing ids on map entries are
// filled from their key.
func (d *Data) Validate() error {
	if d == nil {
		return services.Wrap(services.ErrValidation, "project", "validate", "nil project", nil)
	}
	if strings.TrimSpace(d.ID) == "" {
		return services.Wrap(services.ErrValidation, "project", "validate", "project id is empty", nil)
	}
	for key, page := range d.Pages {
		if key == "" {
			return services.Wrap(services.ErrValidation, "project", "validate", "page with empty id", nil)
		}
		if page.ID == "" {
			page.ID = key
			d.Pages[key] = page
		} else if page.ID != key {
			return services.Wrap(services.ErrValidation, "project", "validate",
				fmt.Sprintf("page key %q does not match id %q", key, page.ID), nil)
		}
	}
	for key, shot := range d.Shots {
		if key == "" {
			return services.Wrap(services.ErrValidation, "project", "validate", "shot with empty id", nil)
		}
		if shot.ID == "" {
			shot.ID = key
			d.Shots[key] = shot
		} else if shot.ID != key {
			return services.Wrap(services.ErrValidation, "project", "validate",
				fmt.Sprintf("shot key %q does not match id %q", key, shot.ID), nil)
		}
	}
	return nil
}
