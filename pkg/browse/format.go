package browse

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// UnknownAuthor is shown for items without authors.
const UnknownAuthor = "Unknown Author"

// UnknownLanguage is shown for items without languages.
const UnknownLanguage = "Unknown"

// DefaultSubjectLimit is the number of subjects shown on a card.
const DefaultSubjectLimit = 3

// AuthorsString joins author names for display. Catalogue names in
// "Last, First" form are turned around; "N/A" entries are skipped.
func AuthorsString(authors []string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		a = strings.TrimSpace(a)
		if a == "" || a == "N/A" {
			continue
		}
		names = append(names, fixAuthorName(a))
	}
	if len(names) == 0 {
		return UnknownAuthor
	}
	return strings.Join(names, ", ")
}

func fixAuthorName(name string) string {
	parts := strings.Split(name, ",")
	if len(parts) == 1 {
		return name
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	fields := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	return strings.Join(fields, " ")
}

// LanguagesString renders language codes as English display names, keeping
// codes it cannot name as they are.
func LanguagesString(codes []string) string {
	namer := display.English.Tags()

	names := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		name := code
		if tag, err := language.Parse(code); err == nil {
			if n := namer.Name(tag); n != "" {
				name = n
			}
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return UnknownLanguage
	}
	return strings.Join(names, ", ")
}

// SubjectsString flattens subject headings such as "England -- Fiction" into
// their distinct parts and returns at most limit of them. limit <= 0 means all.
func SubjectsString(subjects []string, limit int) string {
	seen := make(map[string]struct{})
	var parts []string

	for _, subject := range subjects {
		for _, part := range strings.Split(subject, "--") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			key := strings.ToLower(part)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			parts = append(parts, part)
			if limit > 0 && len(parts) == limit {
				return strings.Join(parts, ", ")
			}
		}
	}
	return strings.Join(parts, ", ")
}
