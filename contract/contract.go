//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"io"
	"reflect"

	"salon-chat/domain"
	"salon-chat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Transport opens push-channel connections.
type Transport interface {
	Connect(ctx context.Context, opts domain.ConnectOptions) (Connection, error)
}

// Connection is one live push-channel connection.
// Frame channels are closed when the connection ends, Closed is closed right after.
type Connection interface {
	Subscribe(destination string) (<-chan domain.InboundFrame, error)
	Send(destination, contentType string, body []byte) error
	Closed() <-chan struct{}
	CloseReason() domain.CloseReason
	Disconnect() error
}

// Session is what the send pipeline needs from a user session.
type Session interface {
	UserID() domain.UserID
	IsConnected() bool
	Publish(destination, contentType string, body []byte) error
}

type EventEmitter interface {
	Emit(evt event.Event)
}

// RoomChecker returns errors.ErrRoomNotFound only when the room is confirmed gone.
type RoomChecker interface {
	Exists(ctx context.Context, roomID domain.RoomID) error
}

type StorageBackend interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string, w io.Writer) error
	Delete(ctx context.Context, key string) error
	DeleteFolder(ctx context.Context, prefix string) error
	List(ctx context.Context, prefix string) ([]domain.ObjectInfo, error)
	PublicURL(key string) string
}

type AttachmentUploader interface {
	UploadOne(ctx context.Context, file domain.File, roomID domain.RoomID) (domain.AttachmentRef, error)
	UploadMany(ctx context.Context, files []domain.File, roomID domain.RoomID) ([]domain.AttachmentRef, error)
}
