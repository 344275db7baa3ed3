package tokens

import (
	"os"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/compresr/context-engine/internal/message"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"hello world, this is a test", 7},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Heuristic(tt.in))
		})
	}
}

func TestCounter_HeuristicOnly(t *testing.T) {
	c := NewCounter(WithHeuristicOnly())

	assert.Equal(t, 0, c.Count("gpt-4", ""))
	assert.Equal(t, 2, c.Count("gpt-4", "abcdefgh"))
	assert.Equal(t, 0, c.CountMessages("gpt-4", nil))

	msgs := []message.Message{
		{Role: "user", Content: message.Text("abcdefgh")},
		{Role: "tool", Name: "tool", Content: message.Text("abcd")},
	}
	// prime 3 + (3 + role 1 + content 2) + (3 + role 1 + content 1 + name 1+1)
	assert.Equal(t, 16, c.CountMessages("gpt-4", msgs))
}

func TestCounter_CountsToolCallsAndReasoning(t *testing.T) {
	c := NewCounter(WithHeuristicOnly())

	plain := []message.Message{{Role: "assistant", Content: message.Text("")}}
	withCalls := []message.Message{{
		Role:      "assistant",
		Content:   message.Text(""),
		ToolCalls: []message.ToolCall{{Function: message.ToolCallFunction{Name: "abcd", Arguments: "abcd"}}},
		Reasoning: &message.Reasoning{Content: "abcd"},
	}}
	assert.Equal(t, c.CountMessages("m", plain)+3, c.CountMessages("m", withCalls))
}

func TestCounter_ConcurrentUse(t *testing.T) {
	c := NewCounter(WithHeuristicOnly())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, 1, c.Count("gpt-4", "abc"))
		}()
	}
	wg.Wait()
}
