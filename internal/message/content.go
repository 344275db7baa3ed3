package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Content part types.
const (
	PartText     = "text"
	PartImageURL = "image_url"
	PartVideoURL = "video_url"
	PartThinking = "thinking"
)

// Content is either plain text or an ordered list of parts.
// A nil Parts slice means plain text.
type Content struct {
	Text  string
	Parts []ContentPart
}

// ContentPart is one element of multimodal content.
type ContentPart struct {
	Type      string    `json:"type"`
	Text      string    `json:"text,omitempty"`
	ImageURL  *MediaURL `json:"image_url,omitempty"`
	VideoURL  *MediaURL `json:"video_url,omitempty"`
	Thinking  string    `json:"thinking,omitempty"`
	Signature string    `json:"signature,omitempty"`
}

// MediaURL points at an image or video.
type MediaURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// Text builds plain text content.
func Text(s string) Content {
	return Content{Text: s}
}

// Parts builds multimodal content.
func Parts(parts ...ContentPart) Content {
	if parts == nil {
		parts = []ContentPart{}
	}
	return Content{Parts: parts}
}

// TextPart builds a text part.
func TextPart(s string) ContentPart {
	return ContentPart{Type: PartText, Text: s}
}

// ImagePart builds an image_url part with automatic detail.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartImageURL, ImageURL: &MediaURL{URL: url, Detail: "auto"}}
}

// VideoPart builds a video_url part.
func VideoPart(url string) ContentPart {
	return ContentPart{Type: PartVideoURL, VideoURL: &MediaURL{URL: url}}
}

// IsParts reports whether the content is multimodal.
func (c Content) IsParts() bool {
	return c.Parts != nil
}

// String returns the textual view of the content. Multimodal content joins
// its text parts with newlines.
func (c Content) String() string {
	if !c.IsParts() {
		return c.Text
	}
	texts := make([]string, 0, len(c.Parts))
	for _, p := range c.Parts {
		if p.Type == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// IsEmpty reports whether there is no text and no parts.
func (c Content) IsEmpty() bool {
	if c.IsParts() {
		return len(c.Parts) == 0
	}
	return c.Text == ""
}

// MapText applies fn to the plain text or to every text part.
func (c Content) MapText(fn func(string) string) Content {
	if !c.IsParts() {
		return Content{Text: fn(c.Text)}
	}
	out := cloneParts(c.Parts)
	for i := range out {
		if out[i].Type == PartText {
			out[i].Text = fn(out[i].Text)
		}
	}
	return Content{Parts: out}
}

// AppendText appends text to plain content, or to the last text part of
// multimodal content, separated by sep. Multimodal content without a text
// part gains a new trailing text part.
func (c Content) AppendText(text, sep string) Content {
	if !c.IsParts() {
		if c.Text == "" {
			return Content{Text: text}
		}
		return Content{Text: c.Text + sep + text}
	}
	out := cloneParts(c.Parts)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Type != PartText {
			continue
		}
		if out[i].Text == "" {
			out[i].Text = text
		} else {
			out[i].Text = out[i].Text + sep + text
		}
		return Content{Parts: out}
	}
	return Content{Parts: append(out, TextPart(text))}
}

// Clone returns a deep copy of the content.
func (c Content) Clone() Content {
	return Content{Text: c.Text, Parts: cloneParts(c.Parts)}
}

// MarshalJSON encodes plain text as a JSON string and parts as an array.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsParts() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts a JSON string, an array of parts, or null.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*c = Content{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content{Text: s}
		return nil
	case '[':
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*c = Parts(parts...)
		return nil
	default:
		return fmt.Errorf("content: expected string or array, got %s", string(data[:1]))
	}
}

func cloneParts(parts []ContentPart) []ContentPart {
	if parts == nil {
		return nil
	}
	out := make([]ContentPart, len(parts))
	for i, p := range parts {
		out[i] = p
		if p.ImageURL != nil {
			u := *p.ImageURL
			out[i].ImageURL = &u
		}
		if p.VideoURL != nil {
			u := *p.VideoURL
			out[i].VideoURL = &u
		}
	}
	return out
}
