package googlebooks

import "encoding/json"

// Volume is one catalog record. Every field besides ID is optional upstream;
// absent values decode to their zero value.
type Volume struct {
	ID                  string
	Title               string
	Subtitle            string
	Authors             []string
	Language            string
	Description         string
	PublishedDate       string
	PageCount           int
	Categories          []string
	Thumbnail           string
	IndustryIdentifiers []IndustryIdentifier
}

// IndustryIdentifier is an ISBN or other registry identifier.
type IndustryIdentifier struct {
	Type       string // "ISBN_13", "ISBN_10", "OTHER"
	Identifier string
}

// ISBN returns the ISBN-13 when present, else the ISBN-10, else "".
func (v Volume) ISBN() string {
	var isbn10 string
	for _, id := range v.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_13":
			return id.Identifier
		case "ISBN_10":
			if isbn10 == "" {
				isbn10 = id.Identifier
			}
		}
	}
	return isbn10
}

// SearchParams describes one volumes query.
type SearchParams struct {
	Query        string // compound expression, e.g. `intitle:"dune" inauthor:herbert`
	LangRestrict string // ISO 639-1; empty searches every language
	MaxResults   int
	Fields       string // partial-response field selector; DefaultFields when empty
}

// SearchResult is a decoded volumes response.
type SearchResult struct {
	TotalItems int
	Volumes    []Volume
	Skipped    int  // items whose payload could not be decoded
	Cached     bool // served from the response cache
}

type rawResponse struct {
	TotalItems int               `json:"totalItems"`
	Items      []json.RawMessage `json:"items"`
}

type rawVolume struct {
	ID         string         `json:"id"`
	VolumeInfo *rawVolumeInfo `json:"volumeInfo"`
}

type rawVolumeInfo struct {
	Title               string                  `json:"title"`
	Subtitle            string                  `json:"subtitle"`
	Authors             []string                `json:"authors"`
	Language            string                  `json:"language"`
	Description         string                  `json:"description"`
	PublishedDate       string                  `json:"publishedDate"`
	PageCount           *int                    `json:"pageCount"`
	Categories          []string                `json:"categories"`
	ImageLinks          *rawImageLinks          `json:"imageLinks"`
	IndustryIdentifiers []rawIndustryIdentifier `json:"industryIdentifiers"`
}

type rawImageLinks struct {
	Thumbnail      string `json:"thumbnail"`
	SmallThumbnail string `json:"smallThumbnail"`
}

type rawIndustryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

func (r *rawVolume) toVolume() Volume {
	v := Volume{ID: r.ID}
	info := r.VolumeInfo
	if info == nil {
		return v
	}

	v.Title = info.Title
	v.Subtitle = info.Subtitle
	v.Language = info.Language
	v.Description = info.Description
	v.PublishedDate = info.PublishedDate
	v.Categories = info.Categories
	for _, a := range info.Authors {
		if a != "" {
			v.Authors = append(v.Authors, a)
		}
	}
	if info.PageCount != nil && *info.PageCount > 0 {
		v.PageCount = *info.PageCount
	}
	if info.ImageLinks != nil {
		v.Thumbnail = info.ImageLinks.Thumbnail
		if v.Thumbnail == "" {
			v.Thumbnail = info.ImageLinks.SmallThumbnail
		}
	}
	for _, id := range info.IndustryIdentifiers {
		if id.Identifier != "" {
			v.IndustryIdentifiers = append(v.IndustryIdentifiers, IndustryIdentifier(id))
		}
	}
	return v
}
