package providers

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/compresr/context-engine/internal/pipeline"
)

// FileContent is the extracted text of a knowledge file.
type FileContent struct {
	FileID   string `json:"fileId" yaml:"file_id"`
	Filename string `json:"filename" yaml:"filename"`
	Content  string `json:"content" yaml:"content"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// KnowledgeBase describes a searchable knowledge base attached to an agent.
type KnowledgeBase struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Knowledge is everything an agent knows beyond the conversation.
type Knowledge struct {
	FileContents   []FileContent   `json:"fileContents,omitempty" yaml:"file_contents,omitempty"`
	KnowledgeBases []KnowledgeBase `json:"knowledgeBases,omitempty" yaml:"knowledge_bases,omitempty"`
}

// IsEmpty reports whether there is nothing to inject.
func (k Knowledge) IsEmpty() bool {
	return len(k.FileContents) == 0 && len(k.KnowledgeBases) == 0
}

// KnowledgeInjector places agent files and knowledge bases before the first
// user message.
type KnowledgeInjector struct {
	Knowledge Knowledge
}

// NewKnowledgeInjector creates the knowledge stage.
func NewKnowledgeInjector(k Knowledge) *KnowledgeInjector {
	return &KnowledgeInjector{Knowledge: k}
}

// Name implements pipeline.Stage.
func (p *KnowledgeInjector) Name() string { return NameKnowledge }

// Process implements pipeline.Stage.
func (p *KnowledgeInjector) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	if p.Knowledge.IsEmpty() {
		return pc, nil
	}
	msgs, ok := pipeline.InjectBeforeFirstUser(pc.Messages, RenderKnowledge(p.Knowledge))
	if !ok {
		return pc, nil
	}
	pc.Messages = msgs
	pc.SetMeta("knowledgeInjected", true)
	pc.SetMeta("filesCount", len(p.Knowledge.FileContents))
	pc.SetMeta("knowledgeBasesCount", len(p.Knowledge.KnowledgeBases))
	return pc, nil
}

// RenderKnowledge formats knowledge as an <agent_knowledge> block.
func RenderKnowledge(k Knowledge) string {
	var b strings.Builder
	b.WriteString("<agent_knowledge>\n")
	b.WriteString("<instruction>The following files and knowledge bases belong to the current agent. Use them when the user's question relies on them.</instruction>\n")

	if len(k.FileContents) > 0 {
		fmt.Fprintf(&b, "<files totalCount=\"%d\">\n", len(k.FileContents))
		for _, f := range k.FileContents {
			if f.Error != "" {
				fmt.Fprintf(&b, "<file id=\"%s\" name=\"%s\" error=\"%s\"></file>\n", attr(f.FileID), attr(f.Filename), attr(f.Error))
				continue
			}
			fmt.Fprintf(&b, "<file id=\"%s\" name=\"%s\">\n%s\n</file>\n", attr(f.FileID), attr(f.Filename), f.Content)
		}
		b.WriteString("</files>\n")
	}

	if len(k.KnowledgeBases) > 0 {
		fmt.Fprintf(&b, "<knowledge_bases totalCount=\"%d\">\n", len(k.KnowledgeBases))
		for _, kb := range k.KnowledgeBases {
			fmt.Fprintf(&b, "<knowledge_base id=\"%s\" name=\"%s\">%s</knowledge_base>\n", attr(kb.ID), attr(kb.Name), kb.Description)
		}
		b.WriteString("</knowledge_bases>\n")
	}

	b.WriteString("</agent_knowledge>")
	return b.String()
}

func attr(s string) string {
	return html.EscapeString(s)
}
