package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBooks(t *testing.T) {
	body := []byte(`{
		"count": 2,
		"next": null,
		"previous": null,
		"results": [
			{
				"id": 1342,
				"title": "Pride and Prejudice",
				"authors": [{"name": "Austen, Jane", "birth_year": 1775, "death_year": 1817}],
				"languages": ["en"],
				"subjects": ["Courtship -- Fiction", "England -- Fiction"],
				"formats": {"image/jpeg": "https://www.gutenberg.org/cache/epub/1342/pg1342.cover.medium.jpg"}
			},
			{
				"id": 99999,
				"title": "Untitled",
				"authors": [],
				"formats": {}
			}
		]
	}`)

	result, err := decodeBooks(body)
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.False(t, result.HasMore)
	assert.Equal(t, 2, result.TotalCount)

	first := result.Items[0]
	assert.Equal(t, int64(1342), first.ID)
	assert.Equal(t, []string{"Austen, Jane"}, first.Authors)
	assert.Equal(t, []string{"Courtship -- Fiction", "England -- Fiction"}, first.Subjects)
	assert.Contains(t, first.CoverImageURL, "pg1342.cover.medium.jpg")

	second := result.Items[1]
	assert.Empty(t, second.Authors)
	assert.NotNil(t, second.Languages)
	assert.NotNil(t, second.Subjects)
	assert.Empty(t, second.CoverImageURL)
}

func TestDecodeBooks_HasMore(t *testing.T) {
	result, err := decodeBooks([]byte(`{"count": 64, "next": "https://gutendex.com/books/?page=2&topic=fiction", "results": []}`))
	require.NoError(t, err)
	assert.True(t, result.HasMore)
	assert.Empty(t, result.Items)
}

func TestDecodeBooks_Malformed(t *testing.T) {
	_, err := decodeBooks([]byte(`<html>`))
	assert.Error(t, err)
}
