package itunes

import (
	"bytes"
	"encoding/json"
)

// Response is the root of the top albums RSS/JSON document
type Response struct {
	Feed Feed `json:"feed"`
}

// Feed is the chart envelope
type Feed struct {
	Entry   OneOrMany[Entry] `json:"entry"`
	Updated *Label           `json:"updated,omitempty"`
}

// Entry is one album in the feed. Every nested field is optional on the
// wire; validation happens in the mapper.
type Entry struct {
	ID          *Attributed           `json:"id,omitempty"`
	Name        *Label                `json:"im:name,omitempty"`
	Artist      *Attributed           `json:"im:artist,omitempty"`
	Images      []Attributed          `json:"im:image,omitempty"`
	ReleaseDate *Attributed           `json:"im:releaseDate,omitempty"`
	Category    *Attributed           `json:"category,omitempty"`
	Link        OneOrMany[Attributed] `json:"link,omitempty"`
}

// Label is the {"label": "..."} wrapper used throughout the feed
type Label struct {
	Label string `json:"label"`
}

// Attributed is a label with string attributes
type Attributed struct {
	Label      string            `json:"label,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attr returns an attribute value, or "" if absent
func (a *Attributed) Attr(key string) string {
	if a == nil {
		return ""
	}
	return a.Attributes[key]
}

// OneOrMany decodes a JSON value that is either a single object or an
// array of objects. The feed collapses one-element arrays into objects.
type OneOrMany[T any] []T

func (o *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = OneOrMany[T]{one}
	return nil
}
