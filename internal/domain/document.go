package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Block types used by the content repository rich text format.
const (
	BlockParagraph = "paragraph"
	BlockImage     = "image"
)

// RichTextBlock is a single block of a rich text field (paragraph, heading, image...).
type RichTextBlock struct {
	Type string `json:"type" bson:"type"`
	Text string `json:"text,omitempty" bson:"text,omitempty"`
	URL  string `json:"url,omitempty" bson:"url,omitempty"`
}

// RichText is an ordered sequence of blocks as stored by the content repository.
// A nil RichText means the field was absent from the document.
type RichText []RichTextBlock

// AsText renders the blocks as plain text, joined by a single space.
func (rt RichText) AsText() (string, error) {
	if rt == nil {
		return "", ErrMalformedDocument
	}
	parts := make([]string, 0, len(rt))
	for _, b := range rt {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, " "), nil
}

// First returns the first block of the given type.
func (rt RichText) First(blockType string) (RichTextBlock, bool) {
	for _, b := range rt {
		if b.Type == blockType {
			return b, true
		}
	}
	return RichTextBlock{}, false
}

// Image is the illustrative image attached to a document.
type Image struct {
	URL string `json:"url,omitempty" bson:"url,omitempty"`
}

// DocumentData holds the custom fields of a post document.
type DocumentData struct {
	Title   RichText `json:"title" bson:"title"`
	Content RichText `json:"content" bson:"content"`
	Image   *Image   `json:"image,omitempty" bson:"image,omitempty"`
	Tags    RichText `json:"tags,omitempty" bson:"tags,omitempty"`
}

// RawDocument is a document as returned by the content repository.
type RawDocument struct {
	ID                  string       `json:"id,omitempty" bson:"doc_id,omitempty"`
	UID                 string       `json:"uid" bson:"_id"`
	Type                string       `json:"type" bson:"type"`
	LastPublicationDate string       `json:"last_publication_date" bson:"last_publication_date"`
	Data                DocumentData `json:"data" bson:"data"`
}

// ImageURL returns the image url or an empty string when the document has none.
func (d *RawDocument) ImageURL() string {
	if d.Data.Image == nil {
		return ""
	}
	return d.Data.Image.URL
}

// ContentHash is a deterministic digest of the document's type, uid,
// publication date and data. It changes whenever a republish alters the post.
func (d *RawDocument) ContentHash() string {
	hasher := sha256.New()
	hasher.Write([]byte(d.Type))
	hasher.Write([]byte(d.UID))
	hasher.Write([]byte(d.LastPublicationDate))
	data, _ := json.Marshal(d.Data)
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// publicationLayouts are the timestamp layouts seen in repository payloads.
var publicationLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	time.RFC3339Nano,
}

// PublishedAt parses LastPublicationDate.
func (d *RawDocument) PublishedAt() (time.Time, bool) {
	for _, layout := range publicationLayouts {
		if t, err := time.Parse(layout, d.LastPublicationDate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Post is the display-ready view of a document.
type Post struct {
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	Excerpt    string `json:"excerpt"`
	Tag        string `json:"tag"`
	Image      string `json:"image"`
	TimeOfRead int    `json:"timeOfRead"`
	UpdatedAt  string `json:"updatedAt"`
}
