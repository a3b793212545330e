package catalog

import (
	"encoding/json"
	"fmt"
)

// coverFormat is the format key holding the cover image URL.
const coverFormat = "image/jpeg"

type bookList struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []book  `json:"results"`
}

type book struct {
	ID        int64             `json:"id"`
	Title     string            `json:"title"`
	Authors   []person          `json:"authors"`
	Languages []string          `json:"languages"`
	Subjects  []string          `json:"subjects"`
	Formats   map[string]string `json:"formats"`
}

type person struct {
	Name string `json:"name"`
}

// decodeBooks converts a /books response body into a Page.
func decodeBooks(body []byte) (Page, error) {
	var list bookList
	if err := json.Unmarshal(body, &list); err != nil {
		return Page{}, fmt.Errorf("unmarshal book list: %w", err)
	}

	items := make([]Item, 0, len(list.Results))
	for _, b := range list.Results {
		authors := make([]string, 0, len(b.Authors))
		for _, a := range b.Authors {
			authors = append(authors, a.Name)
		}
		items = append(items, Item{
			ID:            b.ID,
			Title:         b.Title,
			Authors:       authors,
			Languages:     nonNil(b.Languages),
			Subjects:      nonNil(b.Subjects),
			CoverImageURL: b.Formats[coverFormat],
		})
	}

	return Page{
		Items:      items,
		HasMore:    list.Next != nil && *list.Next != "",
		TotalCount: list.Count,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
