package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_UnmarshalStringAndParts(t *testing.T) {
	var msgs []Message
	raw := `[
		{"role":"user","content":"hello"},
		{"role":"user","content":[{"type":"text","text":"look"},{"type":"image_url","image_url":{"url":"http://x/y.png"}}]},
		{"role":"assistant","content":null}
	]`
	require.NoError(t, json.Unmarshal([]byte(raw), &msgs))
	require.Len(t, msgs, 3)

	assert.False(t, msgs[0].Content.IsParts())
	assert.Equal(t, "hello", msgs[0].Content.String())

	assert.True(t, msgs[1].Content.IsParts())
	assert.Len(t, msgs[1].Content.Parts, 2)
	assert.Equal(t, "http://x/y.png", msgs[1].Content.Parts[1].ImageURL.URL)

	assert.True(t, msgs[2].Content.IsEmpty())
}

func TestContent_UnmarshalRejectsObjects(t *testing.T) {
	var c Content
	err := json.Unmarshal([]byte(`{"text":"x"}`), &c)
	assert.Error(t, err)
}

func TestContent_MarshalKeepsShape(t *testing.T) {
	out, err := json.Marshal(Message{Role: RoleUser, Content: Text("hi")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hi"}`, string(out))

	out, err = json.Marshal(Message{Role: RoleUser, Content: Parts(TextPart("hi"), ImagePart("u"))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":[{"type":"text","text":"hi"},{"type":"image_url","image_url":{"url":"u","detail":"auto"}}]}`, string(out))
}

func TestContent_AppendText(t *testing.T) {
	tests := []struct {
		name string
		in   Content
		want Content
	}{
		{"plain", Text("Original"), Text("Original\n\nAdded")},
		{"empty plain", Text(""), Text("Added")},
		{
			"last text part",
			Parts(TextPart("First"), ImagePart("u"), TextPart("Last")),
			Parts(TextPart("First"), ImagePart("u"), TextPart("Last\n\nAdded")),
		},
		{
			"no text part",
			Parts(ImagePart("u")),
			Parts(ImagePart("u"), TextPart("Added")),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.AppendText("Added", "\n\n"))
		})
	}
}

func TestClone_IsolatesNestedData(t *testing.T) {
	orig := Message{
		Role:    RoleAssistant,
		Content: Parts(TextPart("a")),
		Tools: []ToolPayload{{
			ID: "t1", Identifier: "web", APIName: "search",
			Result: &ToolResult{ID: "r1", State: map[string]any{"k": 1}},
		}},
		Meta: map[string]any{"title": "x"},
	}

	dup := Clone(orig)
	dup.Content.Parts[0].Text = "changed"
	dup.Tools[0].Result.State["k"] = 2
	dup.Meta["title"] = "y"

	assert.Equal(t, "a", orig.Content.Parts[0].Text)
	assert.Equal(t, 1, orig.Tools[0].Result.State["k"])
	assert.Equal(t, "x", orig.Meta["title"])
}

func TestIsSystemInjection(t *testing.T) {
	assert.False(t, (&Message{}).IsSystemInjection())
	assert.True(t, (&Message{Meta: map[string]any{"systemInjection": true}}).IsSystemInjection())
}
