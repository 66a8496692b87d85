package dto

import (
	"time"

	"leadgen-sync/internal/entity"
)

// UpdateGenerationRequest replaces a cached generation with an edited copy.
type UpdateGenerationRequest struct {
	Shape    entity.GenerationShape    `json:"shape" validate:"required,oneof=single batch"`
	Post     *entity.GeneratedPost     `json:"post" validate:"required_if=Shape single"`
	Comments []entity.GeneratedComment `json:"comments" validate:"required_if=Shape batch,dive"`
}

func (r UpdateGenerationRequest) ToEntity(kind entity.GenerationKind, at time.Time) *entity.Generation {
	gen := &entity.Generation{Kind: kind, Shape: r.Shape, GeneratedAt: at}
	if r.Shape == entity.ShapeSingle {
		gen.Post = r.Post
	} else {
		gen.Comments = r.Comments
	}
	return gen
}

type KarmaEntry struct {
	Kind       entity.GenerationKind `json:"kind"`
	Generating bool                  `json:"generating"`
	Cached     *entity.Generation    `json:"cached"`
}
