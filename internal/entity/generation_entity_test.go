package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGeneration(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name          string
		kind          GenerationKind
		raw           string
		wantShape     GenerationShape
		wantComments  int
		wantPostTitle string
	}{
		{
			name:         "bare comment array",
			kind:         GenerationComment,
			raw:          `[{"comment":"first"},{"comment":"second"}]`,
			wantShape:    ShapeBatch,
			wantComments: 2,
		},
		{
			name:         "response envelope with array",
			kind:         GenerationComment,
			raw:          `{"response":"[{\"comment\":\"only\"}]"}`,
			wantShape:    ShapeBatch,
			wantComments: 1,
		},
		{
			name:          "post object",
			kind:          GenerationPost,
			raw:           `{"title":"Ship it","description":"story","subreddit":"SaaS","image_url":"https://img"}`,
			wantShape:     ShapeSingle,
			wantPostTitle: "Ship it",
		},
		{
			name:          "response envelope with post",
			kind:          GenerationPost,
			raw:           `{"response":"{\"title\":\"Wrapped\"}"}`,
			wantShape:     ShapeSingle,
			wantPostTitle: "Wrapped",
		},
		{
			name:         "single comment object",
			kind:         GenerationComment,
			raw:          ` {"comment":"lonely"} `,
			wantShape:    ShapeBatch,
			wantComments: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := ParseGeneration(tt.kind, []byte(tt.raw), at)
			require.NoError(t, err)

			assert.Equal(t, tt.kind, gen.Kind)
			assert.Equal(t, tt.wantShape, gen.Shape)
			assert.Equal(t, at, gen.GeneratedAt)
			assert.Len(t, gen.Comments, tt.wantComments)
			if tt.wantPostTitle != "" {
				require.NotNil(t, gen.Post)
				assert.Equal(t, tt.wantPostTitle, gen.Post.Title)
			} else {
				assert.Nil(t, gen.Post)
			}
		})
	}
}

func TestParseGenerationRejectsUnknownShapes(t *testing.T) {
	bad := []string{
		``,
		`"just a string"`,
		`{"unrelated":true}`,
		`{"response":"not json"}`,
		`{"response":"{\"response\":\"[]\"}"}`,
	}
	for _, raw := range bad {
		_, err := ParseGeneration(GenerationComment, []byte(raw), time.Now())
		assert.ErrorIs(t, err, ErrMalformedGeneration, raw)
	}
}

func TestItemFlags(t *testing.T) {
	item := Item{Id: "1"}

	read := item.WithFlag(FlagRead, true)
	assert.True(t, read.FlagValue(FlagRead))
	assert.False(t, read.FlagValue(FlagSaved))
	assert.False(t, item.Read, "WithFlag must not mutate the receiver")

	saved := item.WithFlag(FlagSaved, true)
	assert.True(t, saved.FlagValue(FlagSaved))
}
