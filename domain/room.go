package domain

import "fmt"

// RoomID identifies a chat conversation between a salon and a customer.
type RoomID int64

// AttachmentPrefix is the storage folder holding every photo of the room.
func (r RoomID) AttachmentPrefix() string {
	return fmt.Sprintf("chat/%d/", r)
}

// AttachmentKey namespaces one object under the room folder.
func (r RoomID) AttachmentKey(name string) string {
	return r.AttachmentPrefix() + name
}
