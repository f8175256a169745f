package voice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMessageEvictsOldestOverTokenBudget(t *testing.T) {
	c := NewConversation("conv-1", 9, 100)
	c.AddMessage(Message{Role: "user", Content: "one two three"})
	c.AddMessage(Message{Role: "assistant", Content: "four five six seven"})

	msgs := c.Messages()
	require.Len(t, msgs, 1, "oldest message should have been evicted")
	assert.Equal(t, "four five six seven", msgs[0].Content)
}

func TestAddMessageNeverEvictsTheOnlyMessage(t *testing.T) {
	c := NewConversation("conv-1", 1, 100)
	c.AddMessage(Message{Role: "user", Content: strings.Repeat("word ", 50)})

	assert.Len(t, c.Messages(), 1)
}

func TestAddMessageEvictsOverMessageCountCap(t *testing.T) {
	c := NewConversation("conv-1", 100000, 2)
	c.AddMessage(Message{Role: "user", Content: "a"})
	c.AddMessage(Message{Role: "assistant", Content: "b"})
	c.AddMessage(Message{Role: "user", Content: "c"})

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Content)
	assert.Equal(t, "c", msgs[1].Content)
}

func TestSystemPromptPrependedToMessages(t *testing.T) {
	c := NewConversation("conv-1", 1000, 10)
	c.SetSystemPrompt("you are a helpful droid")
	c.AddMessage(Message{Role: "user", Content: "hello"})

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
}

func TestClearEmptiesConversation(t *testing.T) {
	c := NewConversation("conv-1", 1000, 10)
	c.AddMessage(Message{Role: "user", Content: "hello"})
	c.Clear()
	assert.Empty(t, c.Messages())
}

func TestTranscriptAccumulatorJoinsSegments(t *testing.T) {
	var acc TranscriptAccumulator
	acc.Append("hello")
	acc.Append("world")
	assert.Equal(t, "hello world", acc.Text())

	acc.Reset()
	assert.Equal(t, "", acc.Text())
}

func TestTranscriptAccumulatorIgnoresEmptySegments(t *testing.T) {
	var acc TranscriptAccumulator
	acc.Append("hello")
	acc.Append("")
	acc.Append("world")
	assert.Equal(t, "hello world", acc.Text())
}
