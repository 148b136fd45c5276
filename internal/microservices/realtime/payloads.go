package realtime

// Inbound command bodies. Field names follow the web client.

type sendMessagePayload struct {
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
	Text       string `json:"text" validate:"max=4000"`
	Image      string `json:"image" validate:"omitempty,url"`
	ReplyTo    string `json:"replyTo"`
}

// conversationPayload is shared by typing, stopTyping and markMessagesSeen.
type conversationPayload struct {
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
}

type editMessagePayload struct {
	MessageID string `json:"messageId" validate:"required"`
	NewText   string `json:"newText" validate:"max=4000"`
}

type reactionPayload struct {
	MessageID string `json:"messageId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required,max=32"`
}

type messageRefPayload struct {
	MessageID      string `json:"messageId" validate:"required"`
	ConversationID string `json:"conversationId"`
}

type seenResult struct {
	Updated int64 `json:"updated"`
}
