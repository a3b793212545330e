package browse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorsString(t *testing.T) {
	tests := []struct {
		name    string
		authors []string
		want    string
	}{
		{name: "none", authors: nil, want: UnknownAuthor},
		{name: "only N/A", authors: []string{"N/A"}, want: UnknownAuthor},
		{name: "last first", authors: []string{"Austen, Jane"}, want: "Jane Austen"},
		{name: "single name", authors: []string{"Homer"}, want: "Homer"},
		{
			name:    "several",
			authors: []string{"Shelley, Mary Wollstonecraft", "N/A", "Twain, Mark"},
			want:    "Mary Wollstonecraft Shelley, Mark Twain",
		},
		{name: "trailing comma", authors: []string{"Plato,"}, want: "Plato"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AuthorsString(tt.authors))
		})
	}
}

func TestLanguagesString(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		want  string
	}{
		{name: "none", codes: nil, want: UnknownLanguage},
		{name: "english", codes: []string{"en"}, want: "English"},
		{name: "several", codes: []string{"en", "fr", "de"}, want: "English, French, German"},
		{name: "unparseable kept", codes: []string{"??"}, want: "??"},
		{name: "blank skipped", codes: []string{" ", "es"}, want: "Spanish"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LanguagesString(tt.codes))
		})
	}
}

func TestSubjectsString(t *testing.T) {
	subjects := []string{
		"England -- Social life and customs -- 19th century -- Fiction",
		"Sisters -- Fiction",
		"Love stories",
	}

	tests := []struct {
		name  string
		limit int
		want  string
	}{
		{name: "default limit", limit: DefaultSubjectLimit, want: "England, Social life and customs, 19th century"},
		{name: "dedupes across headings", limit: 6, want: "England, Social life and customs, 19th century, Fiction, Sisters, Love stories"},
		{name: "no limit", limit: 0, want: "England, Social life and customs, 19th century, Fiction, Sisters, Love stories"},
		{name: "limit one", limit: 1, want: "England"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubjectsString(subjects, tt.limit))
		})
	}

	assert.Equal(t, "", SubjectsString(nil, 3))
}
