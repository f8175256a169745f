// Package voice holds the conversation memory and transcript accumulation
// types shared across the voice pipeline's sub-stages (mic, stt, llm, tts,
// intent, tools). Grounded on cantina_os/services/gpt_service.py's
// SessionMemory/Message classes.
package voice

import (
	"strings"

	list "github.com/bahlo/generic-list-go"
)

// Message is one turn in a conversation, mirroring gpt_service.py's
// Message model.
type Message struct {
	Role       string
	Content    string
	Name       string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a function call the LLM requested, either mid-stream
// (accumulating) or complete.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON, accumulated incrementally while streaming
}

// approxTokens is a cheap token estimate: word count × 1.3, rounded up.
func approxTokens(content string) int {
	return (len(strings.Fields(content))*13 + 9) / 10
}

// Conversation is the bounded memory for one voice turn sequence: a FIFO
// deque of messages evicted by approximate token budget, plus an optional
// system prompt. Grounded on SessionMemory, using
// github.com/bahlo/generic-list-go for the deque in place of Python's
// collections.deque.
type Conversation struct {
	ID           string
	messages     *list.List[Message]
	systemPrompt string
	maxTokens    int
	maxMessages  int
	tokenCount   int
}

// NewConversation constructs an empty conversation bounded by maxTokens
// (approximate) and maxMessages (hard cap), matching SessionMemory's
// defaults of 4000 tokens / 20 messages.
func NewConversation(id string, maxTokens, maxMessages int) *Conversation {
	return &Conversation{
		ID:          id,
		messages:    list.New[Message](),
		maxTokens:   maxTokens,
		maxMessages: maxMessages,
	}
}

// SetSystemPrompt sets the system prompt prepended to every API request.
func (c *Conversation) SetSystemPrompt(prompt string) {
	c.systemPrompt = prompt
}

// AddMessage appends a message, evicting the oldest messages (but always
// keeping at least one) until both the token budget and the message-count
// cap are satisfied, matching SessionMemory.add_message's eviction loop.
func (c *Conversation) AddMessage(msg Message) {
	c.messages.PushBack(msg)
	c.tokenCount += approxTokens(msg.Content)

	for c.messages.Len() > 1 && (c.tokenCount > c.maxTokens || c.messages.Len() > c.maxMessages) {
		front := c.messages.Front()
		c.tokenCount -= approxTokens(front.Value.Content)
		c.messages.Remove(front)
	}
}

// Messages returns the conversation's messages in order for the API
// request, with the system prompt prepended as a synthetic first message
// if one is set, matching get_messages_for_api.
func (c *Conversation) Messages() []Message {
	out := make([]Message, 0, c.messages.Len()+1)
	if c.systemPrompt != "" {
		out = append(out, Message{Role: "system", Content: c.systemPrompt})
	}
	for e := c.messages.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value)
	}
	return out
}

// Clear empties the conversation history, matching SessionMemory.clear.
func (c *Conversation) Clear() {
	c.messages = list.New[Message]()
	c.tokenCount = 0
}

// TranscriptAccumulator collects final STT segments into one running
// transcript, cleared at the start of each capture window. Grounded on
// the accumulation behavior implied by deepgram_transcription_service.py's
// interim/final segment handling (spec.md §3's Transcript Accumulator).
type TranscriptAccumulator struct {
	segments []string
}

// Append adds a transcript segment.
func (t *TranscriptAccumulator) Append(segment string) {
	if segment == "" {
		return
	}
	t.segments = append(t.segments, segment)
}

// Text joins the accumulated segments into the full transcript so far.
func (t *TranscriptAccumulator) Text() string {
	return strings.Join(t.segments, " ")
}

// Reset clears the accumulator for a new capture window.
func (t *TranscriptAccumulator) Reset() {
	t.segments = nil
}
