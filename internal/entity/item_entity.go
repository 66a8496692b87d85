package entity

import "time"

type CollectionKind string
type Flag string

const (
	CollectionLeads CollectionKind = "leads"
	CollectionPosts CollectionKind = "posts"

	FlagRead  Flag = "read"
	FlagSaved Flag = "saved"
)

// Item is a lead, post or generated-content record. Only the flags are
// mutable after creation.
type Item struct {
	Id          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	Subreddit   string    `json:"subreddit,omitempty"`
	Body        string    `json:"selftext,omitempty"`
	URL         string    `json:"url,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	CreatedAt   time.Time `json:"created_at"`
	Read        bool      `json:"read"`
	Saved       bool      `json:"saved"`
}

func (i Item) GetId() string {
	return i.Id
}

func (i Item) FlagValue(flag Flag) bool {
	switch flag {
	case FlagRead:
		return i.Read
	case FlagSaved:
		return i.Saved
	}
	return false
}

// WithFlag returns a copy of the item with the flag replaced.
func (i Item) WithFlag(flag Flag, value bool) Item {
	switch flag {
	case FlagRead:
		i.Read = value
	case FlagSaved:
		i.Saved = value
	}
	return i
}
