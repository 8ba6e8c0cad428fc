package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-pipeline-go/internal/model"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestNewRejectsInvalidOverlap(t *testing.T) {
	_, err := New(WithChunkSize(5), WithOverlap(5))
	assert.Error(t, err)
	_, err = New(WithChunkSize(5), WithOverlap(-1))
	assert.Error(t, err)
	_, err = New(WithChunkSize(0), WithOverlap(0))
	assert.Error(t, err)

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, c.ChunkSize())
	assert.Equal(t, DefaultOverlap, c.Overlap())
}

func TestChunkEmptyText(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	assert.Empty(t, c.Chunk("   \n\t ", "doc", "a.txt", nil))
}

func TestChunkWindowsAndFinalPartial(t *testing.T) {
	c, err := New(WithChunkSize(5), WithOverlap(2))
	require.NoError(t, err)

	chunks := c.Chunk(words(12), "doc", "a.txt", nil)
	require.Len(t, chunks, 4)

	expected := [][2]int{{0, 5}, {3, 8}, {6, 11}, {9, 12}}
	for i, ch := range chunks {
		assert.Equal(t, expected[i][0], ch.StartOffset)
		assert.Equal(t, expected[i][1], ch.EndOffset)
		assert.Equal(t, i, ch.ChunkIndex)
		assert.Equal(t, fmt.Sprintf("doc_%d", i), ch.ChunkID)
		assert.Equal(t, "a.txt", ch.Source)
		assert.Nil(t, ch.Page)
	}
	assert.Equal(t, "w9 w10 w11", chunks[3].Text)
}

func TestChunkCoverageProperty(t *testing.T) {
	for _, tc := range []struct{ n, w, o int }{
		{1, 5, 0}, {5, 5, 0}, {6, 5, 0}, {100, 7, 3}, {37, 10, 9}, {500, 500, 50}, {1203, 500, 50},
	} {
		t.Run(fmt.Sprintf("n%d_w%d_o%d", tc.n, tc.w, tc.o), func(t *testing.T) {
			c, err := New(WithChunkSize(tc.w), WithOverlap(tc.o))
			require.NoError(t, err)
			chunks := c.Chunk(words(tc.n), "d", "s", nil)
			require.NotEmpty(t, chunks)

			assert.Equal(t, 0, chunks[0].StartOffset)
			assert.Equal(t, tc.n, chunks[len(chunks)-1].EndOffset)
			for i, ch := range chunks {
				assert.Less(t, ch.StartOffset, ch.EndOffset)
				assert.LessOrEqual(t, ch.EndOffset-ch.StartOffset, tc.w)
				if i > 0 {
					prev := chunks[i-1]
					assert.Equal(t, tc.o, prev.EndOffset-ch.StartOffset, "overlap between %d and %d", i-1, i)
				}
			}
		})
	}
}

func TestBuildPageRanges(t *testing.T) {
	ranges := BuildPageRanges([]model.PageText{
		{Page: 1, Text: "a b c"},
		{Page: 2, Text: ""},
		{Page: 3, Text: "d e"},
	})
	assert.Equal(t, []model.PageRange{
		{Page: 1, StartOffset: 0, EndOffset: 3},
		{Page: 2, StartOffset: 3, EndOffset: 3},
		{Page: 3, StartOffset: 3, EndOffset: 5},
	}, ranges)
}

func TestChunkPageResolution(t *testing.T) {
	pages := []model.PageText{
		{Page: 1, Text: words(4)},
		{Page: 2, Text: words(4)},
	}
	full := pages[0].Text + " " + pages[1].Text
	c, err := New(WithChunkSize(4), WithOverlap(2))
	require.NoError(t, err)

	chunks := c.Chunk(full, "d", "s", BuildPageRanges(pages))
	require.Len(t, chunks, 3)
	require.NotNil(t, chunks[0].Page)
	assert.Equal(t, 1, *chunks[0].Page)
	assert.Nil(t, chunks[1].Page, "window straddling two pages has no page")
	require.NotNil(t, chunks[2].Page)
	assert.Equal(t, 2, *chunks[2].Page)
}
