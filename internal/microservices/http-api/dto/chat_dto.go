package dto

// SendMessageRequest is the HTTP body for sending a direct message.
// The sender is always the authenticated user.
type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Text       string `json:"text" binding:"max=4000"`
	Image      string `json:"image" binding:"omitempty,url"`
	ReplyTo    string `json:"reply_to"`
}

// TombstoneResponse acknowledges a delete; clients drop the message by id.
type TombstoneResponse struct {
	MessageID string `json:"message_id"`
}
