package aoe2rec

import (
	"bytes"
	"encoding/json"
)

// Chat channels with a fixed meaning.
const (
	ChannelAll      = 1
	ChannelMetadata = 100
)

// ChatMessage is the JSON object inside a chat record. Player 0 is the
// system. MessageAGP is the text as rendered by the game and starts with an
// "@#<player>" marker.
type ChatMessage struct {
	Player     int    `json:"player"`
	Channel    int    `json:"channel"`
	Message    string `json:"message"`
	MessageAGP string `json:"messageAGP"`
}

// Message decodes the chat payload.
func (c *Chat) Message() (*ChatMessage, error) {
	m := &ChatMessage{}
	if err := json.Unmarshal(c.JSON, m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewChat encodes m as a chat record. HTML characters are not escaped so
// that the payload matches what the game writes.
func NewChat(m *ChatMessage) (*Chat, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return &Chat{JSON: bytes.TrimSuffix(buf.Bytes(), []byte("\n"))}, nil
}
