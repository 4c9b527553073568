// Package genre derives display genres for catalog records from their source
// categories and keywords found in the title and description.
package genre

import (
	"slices"
	"strings"

	"github.com/bookshelfapp/bookshelf-server/internal/normalize"
)

// Unknown is reported when nothing matches.
const Unknown = "Unknown"

// keywords maps folded phrases to the genre they imply.
var keywords = map[string]string{
	"fantasy":         "Fantasy",
	"epic":            "Epic",
	"science fiction": "Science Fiction",
	"sci fi":          "Science Fiction",
	"space":           "Science Fiction",
	"galactic":        "Science Fiction",
	"magic":           "Magic",
	"hero":            "Heroic",
	"adventure":       "Adventure",
	"dystopian":       "Dystopian",
	"dystopia":        "Dystopian",
}

// Infer returns the sorted, de-duplicated genres for a record.
// Source categories are kept as given; keyword genres are added on top.
func Infer(categories []string, title, description string) []string {
	set := make(map[string]struct{})
	for _, c := range categories {
		for part := range strings.SplitSeq(c, "/") {
			if part = strings.TrimSpace(part); part != "" {
				set[part] = struct{}{}
			}
		}
	}

	text := " " + normalize.Phrase(title+" "+description) + " "
	for kw, g := range keywords {
		if strings.Contains(text, " "+kw+" ") {
			set[g] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return out
}

// Join renders genres for display.
func Join(genres []string) string {
	if len(genres) == 0 {
		return Unknown
	}
	return strings.Join(genres, ", ")
}
