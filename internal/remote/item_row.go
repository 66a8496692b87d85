package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"leadgen-sync/internal/entity"
)

// itemRow accepts every column name the backend has used for the same field.
type itemRow struct {
	Id          json.RawMessage `json:"id"`
	LeadId      json.RawMessage `json:"lead_id"`
	PostId      json.RawMessage `json:"post_id"`
	UUID        json.RawMessage `json:"uuid"`
	Title       string          `json:"title"`
	PostTitle   string          `json:"post_title"`
	Author      string          `json:"author"`
	Username    string          `json:"username"`
	Subreddit   string          `json:"subreddit"`
	Selftext    string          `json:"selftext"`
	BodyText    string          `json:"body"`
	Text        string          `json:"text"`
	URL         string          `json:"url"`
	Comment     string          `json:"comment"`
	Score       json.Number     `json:"score"`
	NumComments json.Number     `json:"num_comments"`
	Date        string          `json:"date"`
	CreatedAt   string          `json:"created_at"`
	CreatedUTC  json.Number     `json:"created_utc"`
	Read        bool            `json:"read"`
	Saved       bool            `json:"saved"`
}

var ErrMissingItemId = errors.New("item has no id")

// ParseItem decodes a single row, as pushed by the realtime feed. The row may
// be wrapped in a change envelope under "record" or "new".
func ParseItem(raw []byte) (entity.Item, error) {
	var envelope struct {
		Record json.RawMessage `json:"record"`
		New    json.RawMessage `json:"new"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return entity.Item{}, err
	}
	switch {
	case len(envelope.Record) > 0 && !bytes.Equal(envelope.Record, []byte("null")):
		raw = envelope.Record
	case len(envelope.New) > 0 && !bytes.Equal(envelope.New, []byte("null")):
		raw = envelope.New
	}

	var row itemRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return entity.Item{}, err
	}
	item := row.toItem()
	if item.Id == "" {
		return entity.Item{}, ErrMissingItemId
	}
	return item, nil
}

func (r itemRow) toItem() entity.Item {
	return entity.Item{
		Id:          firstNonEmpty(rawId(r.Id), rawId(r.LeadId), rawId(r.PostId), rawId(r.UUID)),
		Title:       firstNonEmpty(r.Title, r.PostTitle),
		Author:      firstNonEmpty(r.Author, r.Username),
		Subreddit:   r.Subreddit,
		Body:        firstNonEmpty(r.Selftext, r.BodyText, r.Text),
		URL:         r.URL,
		Comment:     r.Comment,
		Score:       numberOrZero(r.Score),
		NumComments: numberOrZero(r.NumComments),
		CreatedAt:   r.createdAt(),
		Read:        r.Read,
		Saved:       r.Saved,
	}
}

func (r itemRow) createdAt() time.Time {
	for _, s := range []string{r.Date, r.CreatedAt} {
		if t, ok := parseTime(s); ok {
			return t
		}
	}
	if secs, err := r.CreatedUTC.Float64(); err == nil && secs > 0 {
		return time.Unix(int64(secs), 0).UTC()
	}
	return time.Time{}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// rawId normalizes numeric and string ids to their string form.
func rawId(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func numberOrZero(n json.Number) int {
	if n == "" {
		return 0
	}
	if i, err := strconv.Atoi(n.String()); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return int(f)
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
