package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrConnection        = fmt.Errorf("no live chat session")
	ErrChatRoomDeleted   = fmt.Errorf("chat room has been deleted")
	ErrRoomNotFound      = fmt.Errorf("chat room not found")
	ErrFileTooLarge      = fmt.Errorf("file is too large")
	ErrNotImage          = fmt.Errorf("attachment is not an image")
	ErrInvalidAttachment = fmt.Errorf("invalid attachment")
	ErrInvalidEnvelope   = fmt.Errorf("invalid outbound message")
	ErrParse             = fmt.Errorf("message processing failed")
	ErrStompProtocol     = fmt.Errorf("stomp protocol error")
	ErrStorageFault      = fmt.Errorf("storage fault")
	ErrObjectNotFound    = fmt.Errorf("object not found")
	ErrSessionClosed     = fmt.Errorf("session closed")
)

// StorageFault reports a backend failure for one storage operation.
type StorageFault struct {
	Op  string
	Key string
	Err error
}

func NewStorageFault(op, key string, err error) *StorageFault {
	return &StorageFault{Op: op, Key: key, Err: err}
}

func (f *StorageFault) Error() string {
	return fmt.Sprintf("storage %s %q: %v", f.Op, f.Key, f.Err)
}

func (f *StorageFault) Unwrap() error { return f.Err }

func (f *StorageFault) Is(target error) bool { return target == ErrStorageFault }

// Is and As forward to the standard library so callers only need this package.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
