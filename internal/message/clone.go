package message

// Clone performs a deep copy of a message, duplicating nested slices and maps
// so stages never mutate the caller's history.
func Clone(msg Message) Message {
	out := msg
	out.Content = msg.Content.Clone()
	out.ToolCalls = cloneToolCalls(msg.ToolCalls)
	out.Tools = ClonePayloads(msg.Tools)
	if msg.Plugin != nil {
		p := clonePayload(*msg.Plugin)
		out.Plugin = &p
	}
	out.PluginState = cloneMap(msg.PluginState)
	out.ImageList = append([]ImageItem(nil), msg.ImageList...)
	out.VideoList = append([]VideoItem(nil), msg.VideoList...)
	out.FileList = append([]FileItem(nil), msg.FileList...)
	if msg.Reasoning != nil {
		r := *msg.Reasoning
		out.Reasoning = &r
	}
	if msg.Children != nil {
		out.Children = make([]GroupChild, len(msg.Children))
		for i, child := range msg.Children {
			out.Children[i] = cloneChild(child)
		}
	}
	if msg.Members != nil {
		out.Members = CloneMessages(msg.Members)
	}
	out.Meta = cloneMap(msg.Meta)
	return out
}

// CloneMessages clones an entire slice of messages.
func CloneMessages(msgs []Message) []Message {
	if len(msgs) == 0 {
		return []Message{}
	}
	out := make([]Message, len(msgs))
	for i, msg := range msgs {
		out[i] = Clone(msg)
	}
	return out
}

// ClonePayloads copies tool payloads including their results.
func ClonePayloads(tools []ToolPayload) []ToolPayload {
	if tools == nil {
		return nil
	}
	out := make([]ToolPayload, len(tools))
	for i, t := range tools {
		out[i] = clonePayload(t)
	}
	return out
}

// WithoutResult returns the payload with its stored result stripped.
func (t ToolPayload) WithoutResult() ToolPayload {
	t.Result = nil
	return t
}

func clonePayload(t ToolPayload) ToolPayload {
	if t.Result != nil {
		r := *t.Result
		r.State = cloneMap(t.Result.State)
		t.Result = &r
	}
	return t
}

func cloneChild(c GroupChild) GroupChild {
	c.Tools = ClonePayloads(c.Tools)
	if c.Reasoning != nil {
		r := *c.Reasoning
		c.Reasoning = &r
	}
	c.ImageList = append([]ImageItem(nil), c.ImageList...)
	return c
}

func cloneToolCalls(calls []ToolCall) []ToolCall {
	if calls == nil {
		return nil
	}
	return append([]ToolCall(nil), calls...)
}

func cloneMap(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	dup := make(map[string]any, len(input))
	for k, v := range input {
		dup[k] = v
	}
	return dup
}
