package domain

import (
	"fmt"
	"strings"
	"time"
)

// UserID is the opaque identifier of a connected admin or customer.
type UserID string

const (
	ErrorDestination = "/user/queue/errors"
	SendDestination  = "/app/chat.sendMessage"
	ContentTypeJSON  = "application/json"
)

// PrivateDestination is the per-user queue the server pushes chat messages to.
func PrivateDestination(userID UserID) string {
	return fmt.Sprintf("/user/%s/queue/messages", userID)
}

// ConnectOptions configures one transport connection.
type ConnectOptions struct {
	UserID    UserID
	Endpoint  string
	Host      string
	Heartbeat time.Duration
	Headers   map[string]string
}

const closeNormal = 1000

// CloseReason is the close code and reason reported by the carrier when a connection ends.
type CloseReason struct {
	Code   int
	Reason string
}

// RoomDeleted reports a normal close whose reason says the room was removed upstream.
func (c CloseReason) RoomDeleted() bool {
	return c.Code == closeNormal && strings.Contains(strings.ToLower(c.Reason), "deleted")
}
