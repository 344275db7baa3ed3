package processors

import (
	"context"
	"fmt"
	"strings"

	"github.com/compresr/context-engine/internal/message"
	"github.com/compresr/context-engine/internal/pipeline"
)

// CapabilityChecker reports whether a model supports a feature.
type CapabilityChecker func(model, provider string) bool

// FileContext controls the files_info block appended to user messages with
// attachments.
type FileContext struct {
	Enabled        bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	IncludeFileURL bool `json:"includeFileUrl" yaml:"include_file_url" toml:"include_file_url"`
}

// Providers that replay reasoning natively and must not see <think> text.
var thinkingExcludedProviders = map[string]bool{
	"anthropic": true,
	"google":    true,
	"vertex":    true,
	"vertexai":  true,
}

// Providers that accept the raw reasoning field on historical turns.
var reasoningFieldProviders = map[string]bool{
	"minimax":  true,
	"moonshot": true,
}

// MessageContent turns media lists and reasoning into provider content.
type MessageContent struct {
	IsCanUseVision            CapabilityChecker
	IsCanUseVideo             CapabilityChecker
	FileContext               FileContext
	IncludeHistoricalThinking bool
}

// Name implements pipeline.Stage.
func (p *MessageContent) Name() string { return NameMessageContent }

// Process implements pipeline.Stage.
func (p *MessageContent) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	model, provider := pc.Model(), pc.Provider()
	vision := check(p.IsCanUseVision, model, provider, true)
	video := check(p.IsCanUseVideo, model, provider, false)

	users, assistants := 0, 0
	for i := range pc.Messages {
		m := &pc.Messages[i]
		switch m.Role {
		case message.RoleUser:
			p.processUser(m, vision, video)
			users++
		case message.RoleAssistant:
			p.processAssistant(m, provider, vision)
			assistants++
		}
	}

	pc.SetMeta("messageContentProcessed", len(pc.Messages))
	pc.SetMeta("userMessagesProcessed", users)
	pc.SetMeta("assistantMessagesProcessed", assistants)
	return pc, nil
}

func check(fn CapabilityChecker, model, provider string, fallback bool) bool {
	if fn == nil {
		return fallback
	}
	return fn(model, provider)
}

// =============================================================================
// USER
// =============================================================================

func (p *MessageContent) processUser(m *message.Message, vision, video bool) {
	if m.Content.IsParts() {
		return
	}
	text := m.Content.Text

	hasAttachments := len(m.ImageList) > 0 || len(m.FileList) > 0 || len(m.VideoList) > 0
	withFiles := p.FileContext.Enabled && hasAttachments
	if withFiles {
		info := FilesInfo(m.ImageList, m.VideoList, m.FileList, p.FileContext.IncludeFileURL)
		text = text + "\n\n" + pipeline.WrapSystemContext(info, "files_info")
	}

	var media []message.ContentPart
	if vision {
		for _, img := range m.ImageList {
			media = append(media, message.ImagePart(img.URL))
		}
	}
	if video {
		for _, v := range m.VideoList {
			media = append(media, message.VideoPart(v.URL))
		}
	}

	if len(media) == 0 && !withFiles {
		return
	}
	parts := make([]message.ContentPart, 0, len(media)+1)
	if text != "" {
		parts = append(parts, message.TextPart(text))
	}
	m.Content = message.Parts(append(parts, media...)...)
}

// FilesInfo renders the attachment listing placed inside the files_info
// context block.
func FilesInfo(images []message.ImageItem, videos []message.VideoItem, files []message.FileItem, includeURL bool) string {
	var b strings.Builder
	urlAttr := func(u string) string {
		if !includeURL || u == "" {
			return ""
		}
		return fmt.Sprintf(` url="%s"`, u)
	}

	if len(images) > 0 {
		b.WriteString("<images>\n<images_docstring>here are user upload images you can refer to</images_docstring>\n")
		for _, img := range images {
			fmt.Fprintf(&b, "<image name=\"%s\"%s></image>\n", img.Alt, urlAttr(img.URL))
		}
		b.WriteString("</images>\n")
	}
	if len(videos) > 0 {
		b.WriteString("<videos>\n<videos_docstring>here are user upload videos you can refer to</videos_docstring>\n")
		for _, v := range videos {
			fmt.Fprintf(&b, "<video name=\"%s\"%s></video>\n", v.Alt, urlAttr(v.URL))
		}
		b.WriteString("</videos>\n")
	}
	if len(files) > 0 {
		b.WriteString("<files>\n<files_docstring>here are user upload files you can refer to</files_docstring>\n")
		for _, f := range files {
			fmt.Fprintf(&b, "<file id=\"%s\" name=\"%s\" type=\"%s\" size=\"%d\"%s></file>\n",
				f.ID, f.Name, f.FileType, f.Size, urlAttr(f.URL))
		}
		b.WriteString("</files>\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// =============================================================================
// ASSISTANT
// =============================================================================

func (p *MessageContent) processAssistant(m *message.Message, provider string, vision bool) {
	if m.Content.IsParts() {
		return
	}
	text := m.Content.Text
	reasoning := m.Reasoning
	providerKey := strings.ToLower(provider)

	switch {
	case reasoning != nil && reasoning.Signature != "":
		m.Content = message.Parts(
			message.ContentPart{Type: message.PartThinking, Thinking: reasoning.Content, Signature: reasoning.Signature},
			message.TextPart(text),
		)
		m.Reasoning = nil

	case vision && len(m.ImageList) > 0:
		parts := make([]message.ContentPart, 0, len(m.ImageList)+1)
		if text != "" {
			parts = append(parts, message.TextPart(text))
		}
		for _, img := range m.ImageList {
			parts = append(parts, message.ImagePart(img.URL))
		}
		m.Content = message.Parts(parts...)
		m.Reasoning = nil

	case p.IncludeHistoricalThinking && reasoningFieldProviders[providerKey]:
		// reasoning travels as its own field

	case p.IncludeHistoricalThinking && reasoning != nil && reasoning.Content != "" && !thinkingExcludedProviders[providerKey]:
		m.Content = message.Text("<think>" + reasoning.Content + "</think>\n" + text)
		m.Reasoning = nil

	default:
		m.Reasoning = nil
	}
}
