package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type GenerationKind string

const (
	GenerationComment GenerationKind = "comment"
	GenerationPost    GenerationKind = "post"
)

// GenerationKinds lists every kind tracked by the generation cache.
var GenerationKinds = []GenerationKind{GenerationComment, GenerationPost}

func (k GenerationKind) Valid() bool {
	for _, known := range GenerationKinds {
		if k == known {
			return true
		}
	}
	return false
}

// GenerationShape discriminates the Generation sum type.
type GenerationShape string

const (
	ShapeSingle GenerationShape = "single"
	ShapeBatch  GenerationShape = "batch"
)

type GeneratedComment struct {
	Comment string `json:"comment"`
}

type GeneratedPost struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Subreddit   string `json:"subreddit,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Generation is one successful result of the content generator. Exactly one of
// Post (ShapeSingle) or Comments (ShapeBatch) is set.
type Generation struct {
	Kind        GenerationKind     `json:"kind"`
	Shape       GenerationShape    `json:"shape"`
	Post        *GeneratedPost     `json:"post,omitempty"`
	Comments    []GeneratedComment `json:"comments,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
}

var ErrMalformedGeneration = errors.New("malformed generation payload")

// ParseGeneration decides the payload shape once, at the boundary. The
// generator answers with a bare array, an object, or an object whose
// "response" field holds one of those as a JSON string.
func ParseGeneration(kind GenerationKind, raw []byte, at time.Time) (*Generation, error) {
	gen := &Generation{Kind: kind, GeneratedAt: at}
	if err := decodeShape(gen, raw, 0); err != nil {
		return nil, err
	}
	return gen, nil
}

func decodeShape(gen *Generation, raw []byte, depth int) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedGeneration)
	}

	switch raw[0] {
	case '[':
		var comments []GeneratedComment
		if err := json.Unmarshal(raw, &comments); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedGeneration, err)
		}
		gen.Shape = ShapeBatch
		gen.Comments = comments
		return nil

	case '{':
		var probe struct {
			Response *string `json:"response"`
			Comment  *string `json:"comment"`
			GeneratedPost
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedGeneration, err)
		}
		switch {
		case probe.Response != nil:
			if depth > 0 {
				return fmt.Errorf("%w: nested response envelope", ErrMalformedGeneration)
			}
			return decodeShape(gen, []byte(*probe.Response), depth+1)
		case probe.Title != "":
			post := probe.GeneratedPost
			gen.Shape = ShapeSingle
			gen.Post = &post
			return nil
		case probe.Comment != nil:
			gen.Shape = ShapeBatch
			gen.Comments = []GeneratedComment{{Comment: *probe.Comment}}
			return nil
		}
	}

	return fmt.Errorf("%w: unrecognised shape", ErrMalformedGeneration)
}
