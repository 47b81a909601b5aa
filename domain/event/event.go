package event

import (
	"fmt"

	"salon-chat/domain"
)

// Class selects which listeners receive an event.
type Class int

const (
	MessageClass Class = iota + 1
	ErrorClass
)

func (c Class) String() string {
	switch c {
	case MessageClass:
		return "MESSAGE"
	case ErrorClass:
		return "ERROR"
	default:
		return fmt.Sprintf("CLASS(%d)", int(c))
	}
}

type ErrorType string

const (
	ConnectionErrorType    ErrorType = "CONNECTION_ERROR"
	ChatRoomDeletedType    ErrorType = "CHAT_ROOM_DELETED"
	FileTooLargeType       ErrorType = "FILE_TOO_LARGE"
	ParseErrorType         ErrorType = "PARSE_ERROR"
	StompProtocolErrorType ErrorType = "STOMP_PROTOCOL_ERROR"
	InvalidAttachmentType  ErrorType = "INVALID_ATTACHMENT"
	InvalidMessageType     ErrorType = "INVALID_MESSAGE"
	ServerErrorType        ErrorType = "SERVER_ERROR"
)

var knownTypes = map[ErrorType]struct{}{
	ConnectionErrorType:    {},
	ChatRoomDeletedType:    {},
	FileTooLargeType:       {},
	ParseErrorType:         {},
	StompProtocolErrorType: {},
	InvalidAttachmentType:  {},
	InvalidMessageType:     {},
}

// ClassifyErrorType maps the error field of a server payload to a known type.
// Anything the client does not know about is a SERVER_ERROR.
func ClassifyErrorType(raw string) ErrorType {
	if _, ok := knownTypes[ErrorType(raw)]; ok {
		return ErrorType(raw)
	}
	return ServerErrorType
}

// ChatError is the payload of an ErrorClass event.
type ChatError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e ChatError) Unwrap() error { return e.Cause }

// Event is what listeners are notified with.
// Exactly one of Message and Error is set, according to Class.
type Event struct {
	Class       Class
	UserID      domain.UserID
	Destination string
	Message     *domain.ChatMessage
	Error       *ChatError
}

func NewMessage(userID domain.UserID, destination string, msg domain.ChatMessage) Event {
	return Event{Class: MessageClass, UserID: userID, Destination: destination, Message: &msg}
}

func NewError(userID domain.UserID, errorType ErrorType, message string, cause error) Event {
	return Event{
		Class:  ErrorClass,
		UserID: userID,
		Error:  &ChatError{Type: errorType, Message: message, Cause: cause},
	}
}
