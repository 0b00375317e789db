package notification

import (
	"fmt"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// MessageTypeItemAvailable is the type of the message sent when a waited-for item is back.
const MessageTypeItemAvailable = "item_available"

// Message is the payload pushed to a user's channel.
type Message struct {
	Type    string    `json:"type"`
	ItemID  uuid.UUID `json:"item_id"`
	Message string    `json:"message"`
}

// NewItemAvailableMessage builds the message for an item that has a free copy again.
func NewItemAvailableMessage(item lending.Item) Message {
	return Message{
		Type:    MessageTypeItemAvailable,
		ItemID:  item.ID,
		Message: fmt.Sprintf("The book '%s' is now available.", item.Title),
	}
}

// Encode renders the message as a JSON frame.
func (m Message) Encode() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(m)
}

// DecodeMessage parses a JSON frame.
func DecodeMessage(frame []byte) (Message, error) {
	var m Message
	if err := jsoniter.ConfigFastest.Unmarshal(frame, &m); err != nil {
		return Message{}, err
	}

	return m, nil
}
