// Package domain contains core concepts of the chat system.
// This file defines the outbound envelope and the inbound chat message.
// Envelopes are built once per send and never mutated afterwards.
package domain

// PhotoPlaceholder replaces an empty body when a message only carries photos.
const PhotoPlaceholder = "사진을 보냈습니다."

type SenderRole string

const (
	SenderAdmin    SenderRole = "ADMIN"
	SenderCustomer SenderRole = "CUSTOMER"
)

// AttachmentRef is the durable reference of an uploaded photo.
// FileName and SizeBytes are the values the client declared, not what the backend reports.
type AttachmentRef struct {
	URL       string `json:"fileUrl"`
	FileName  string `json:"fileName"`
	SizeBytes int64  `json:"fileSize"`
}

// OutboundEnvelope is the payload published to the send destination.
type OutboundEnvelope struct {
	RoomID      RoomID          `json:"chatRoomId"`
	Body        string          `json:"message"`
	SenderRole  SenderRole      `json:"senderType"`
	SenderID    UserID          `json:"senderId"`
	Attachments []AttachmentRef `json:"photos"`
}

// NewOutboundEnvelope copies attachments so the envelope cannot be changed through the caller's slice.
func NewOutboundEnvelope(roomID RoomID, body string, role SenderRole, senderID UserID, attachments []AttachmentRef) OutboundEnvelope {
	photos := make([]AttachmentRef, len(attachments))
	copy(photos, attachments)
	if body == "" && len(photos) > 0 {
		body = PhotoPlaceholder
	}
	return OutboundEnvelope{
		RoomID:      roomID,
		Body:        body,
		SenderRole:  role,
		SenderID:    senderID,
		Attachments: photos,
	}
}

// SendRequest is what a caller asks the send pipeline to publish.
type SendRequest struct {
	RoomID      RoomID `validate:"gt=0"`
	Body        string
	SenderRole  SenderRole      `validate:"oneof=ADMIN CUSTOMER"`
	Attachments []AttachmentRef `validate:"dive"`
}

// ChatMessage is a message echoed by the server on the private queue.
type ChatMessage struct {
	ID         int64           `json:"id,omitempty"`
	RoomID     RoomID          `json:"chatRoomId"`
	SenderRole SenderRole      `json:"senderType"`
	SenderID   UserID          `json:"senderId"`
	Body       string          `json:"message"`
	Photos     []AttachmentRef `json:"photos"`
	SentAt     string          `json:"sentAt,omitempty"`
	IsRead     bool            `json:"isRead"`
}
