package domain

// InboundFrame is one message delivered on a subscribed destination.
// Err is set when the transport reported a protocol fault instead of a message.
type InboundFrame struct {
	Destination string
	Body        []byte
	Err         error
}

// InboundPayload is the union of the chat and error payloads the server sends.
// A non-empty Error marks a domain error, in which case Body carries its description.
type InboundPayload struct {
	ChatMessage
	Error string `json:"error,omitempty"`
}
