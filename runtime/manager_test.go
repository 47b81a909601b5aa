package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"salon-chat/domain"
	"salon-chat/domain/event"
	"salon-chat/errors"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const privateQueue = "/user/u1/queue/messages"

func newTestManager(transport *fakeTransport, reconnectDelay time.Duration) (*Manager, *collector) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	listeners := NewListeners(log)
	col := newCollector()
	listeners.Add(event.MessageClass, col)
	listeners.Add(event.ErrorClass, col)
	manager := NewManager(log, transport, NewRouter(log, listeners), SessionConfig{
		Endpoint:       "ws://chat.test/ws",
		ReconnectDelay: reconnectDelay,
		Heartbeat:      4 * time.Second,
		ConnectTimeout: time.Second,
	})
	return manager, col
}

func TestManager_Open_Subscribes_Private_And_Error_Destinations(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport()
	manager, _ := newTestManager(transport, 10*time.Millisecond)

	// When user u1 opens a session
	session, err := manager.Open(context.Background(), "u1")
	req.NoError(err)
	defer manager.Close(session)

	// Then the session is connected with both destinations subscribed
	req.True(session.IsConnected())
	req.Equal(StateConnected, session.State())
	req.Equal(domain.UserID("u1"), session.UserID())
	req.Equal([]string{privateQueue, domain.ErrorDestination}, session.Subscriptions())
	req.Equal(4*time.Second, transport.lastOpts.Heartbeat)
	req.Equal("ws://chat.test/ws", transport.lastOpts.Endpoint)
}

func TestManager_Error_Payload_On_Private_Queue_Is_An_Error_Event(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport()
	manager, col := newTestManager(transport, 10*time.Millisecond)
	session, err := manager.Open(context.Background(), "u1")
	req.NoError(err)
	defer manager.Close(session)
	conn := transport.nextConn(t)

	// When a frame carrying an error arrives on the private queue
	conn.push(privateQueue, `{"error":"boom"}`)

	// Then it is dispatched as an Error event
	evt := col.next(t)
	req.Equal(event.ErrorClass, evt.Class)
	req.Nil(evt.Message)
	req.Equal(event.ServerErrorType, evt.Error.Type)
	req.Equal("boom", evt.Error.Message)
	req.Equal(privateQueue, evt.Destination)
}

func TestManager_Malformed_Frame_Does_Not_Stop_Dispatch(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport()
	manager, col := newTestManager(transport, 10*time.Millisecond)
	session, err := manager.Open(context.Background(), "u1")
	req.NoError(err)
	defer manager.Close(session)
	conn := transport.nextConn(t)

	// Given a malformed frame followed by a valid message
	conn.push(privateQueue, `{not json`)
	conn.push(privateQueue, `{"chatRoomId":42,"message":"hi","senderType":"ADMIN","senderId":"salon-1","photos":[]}`)

	// Then the first degrades to PARSE_ERROR and the second is still delivered
	first := col.next(t)
	req.Equal(event.ErrorClass, first.Class)
	req.Equal(event.ParseErrorType, first.Error.Type)
	req.ErrorIs(first.Error.Cause, errors.ErrParse)

	second := col.next(t)
	req.Equal(event.MessageClass, second.Class)
	req.Equal("hi", second.Message.Body)
	req.Equal(domain.RoomID(42), second.Message.RoomID)
}

func TestManager_Open_Twice_Keeps_One_Live_Session(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport()
	manager, _ := newTestManager(transport, 10*time.Millisecond)

	first, err := manager.Open(context.Background(), "u1")
	req.NoError(err)
	firstConn := transport.nextConn(t)

	// When the same user opens again
	second, err := manager.Open(context.Background(), "u1")
	req.NoError(err)
	defer manager.Close(second)

	// Then the first session was deactivated gracefully before the second one
	req.Equal(StateClosed, first.State())
	waitDone(t, first)
	req.Equal(int32(1), firstConn.disconnects.Load())
	req.True(second.IsConnected())

	current, ok := manager.Get("u1")
	req.True(ok)
	req.Same(second, current)
}

func TestManager_Close_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport()
	manager, _ := newTestManager(transport, 10*time.Millisecond)
	session, err := manager.Open(context.Background(), "u1")
	req.NoError(err)
	conn := transport.nextConn(t)

	// When closing twice, and closing nil
	req.NotPanics(func() {
		manager.Close(session)
		manager.Close(session)
		manager.Close(nil)
	})

	// Then the session is closed and the transport was disconnected once
	waitDone(t, session)
	req.False(session.IsConnected())
	req.Equal(StateClosed, session.State())
	req.Equal(int32(1), conn.disconnects.Load())
	req.ErrorIs(session.Publish(domain.SendDestination, domain.ContentTypeJSON, []byte("{}")), errors.ErrConnection)

	_, ok := manager.Get("u1")
	req.False(ok)
}

func TestManager_Transient_Close_Reconnects(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport()
	manager, col := newTestManager(transport, 10*time.Millisecond)
	session, err := manager.Open(context.Background(), "u1")
	req.NoError(err)
	defer manager.Close(session)
	firstConn := transport.nextConn(t)

	// When the connection drops abnormally
	firstConn.drop(domain.CloseReason{Code: 1006, Reason: "abnormal closure"})

	// Then the session reconnects and resubscribes
	secondConn := transport.nextConn(t)
	req.Eventually(session.IsConnected, time.Second, 5*time.Millisecond)
	req.Eventually(func() bool { return len(session.Subscriptions()) == 2 }, time.Second, 5*time.Millisecond)

	secondConn.push(privateQueue, `{"chatRoomId":1,"message":"back","senderType":"CUSTOMER","senderId":"u1"}`)
	evt := col.next(t)
	req.Equal(event.MessageClass, evt.Class)
	req.Equal("back", evt.Message.Body)
}

func TestManager_Deleted_Room_Close_Is_Terminal(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport()
	manager, col := newTestManager(transport, 10*time.Millisecond)
	session, err := manager.Open(context.Background(), "u1")
	req.NoError(err)
	conn := transport.nextConn(t)

	// When the server closes normally because the room was deleted
	conn.drop(domain.CloseReason{Code: 1000, Reason: "Chat room deleted"})

	// Then listeners get CHAT_ROOM_DELETED and the session never reconnects
	evt := col.next(t)
	req.Equal(event.ErrorClass, evt.Class)
	req.Equal(event.ChatRoomDeletedType, evt.Error.Type)
	req.ErrorIs(evt.Error.Cause, errors.ErrChatRoomDeleted)

	waitDone(t, session)
	req.Equal(StateClosed, session.State())
	time.Sleep(50 * time.Millisecond)
	req.Equal(1, transport.attemptCount())
	_, ok := manager.Get("u1")
	req.False(ok)
}

func TestManager_Close_Stops_Pending_Reconnect(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport()
	manager, _ := newTestManager(transport, 100*time.Millisecond)
	session, err := manager.Open(context.Background(), "u1")
	req.NoError(err)
	conn := transport.nextConn(t)

	// Given the connection dropped and a reconnect is pending
	conn.drop(domain.CloseReason{Code: 1006})
	req.Eventually(func() bool { return session.State() == StateReconnecting }, time.Second, 5*time.Millisecond)

	// When the session is closed during the backoff
	manager.Close(session)
	waitDone(t, session)

	// Then no further attempt is made
	time.Sleep(150 * time.Millisecond)
	req.Equal(1, transport.attemptCount())
}

func TestManager_First_Connect_Failure(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport(fmt.Errorf("dial refused"))
	manager, col := newTestManager(transport, 10*time.Millisecond)

	// When the first attempt fails
	session, err := manager.Open(context.Background(), "u1")

	// Then Open fails with a connection error reported to listeners too
	req.Nil(session)
	req.ErrorIs(err, errors.ErrConnection)
	evt := col.next(t)
	req.Equal(event.ConnectionErrorType, evt.Error.Type)

	_, ok := manager.Get("u1")
	req.False(ok)
}

func TestManager_Sessions_Are_Independent(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport()
	manager, col := newTestManager(transport, 10*time.Millisecond)

	alice, err := manager.Open(context.Background(), "alice")
	req.NoError(err)
	aliceConn := transport.nextConn(t)
	bob, err := manager.Open(context.Background(), "bob")
	req.NoError(err)
	bobConn := transport.nextConn(t)

	// When alice's session is closed
	manager.Close(alice)
	waitDone(t, alice)

	// Then bob still receives his messages
	bobConn.push(domain.PrivateDestination("bob"), `{"chatRoomId":3,"message":"still here"}`)
	evt := col.next(t)
	req.Equal(domain.UserID("bob"), evt.UserID)
	req.Equal("still here", evt.Message.Body)
	req.Equal(int32(1), aliceConn.disconnects.Load())
	req.True(bob.IsConnected())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	manager.CloseAll(ctx)
	waitDone(t, bob)
	col.none(t, 20*time.Millisecond)
}

func TestSession_Publish_Uses_Current_Connection(t *testing.T) {
	req := require.New(t)
	transport := newFakeTransport()
	manager, _ := newTestManager(transport, 10*time.Millisecond)
	session, err := manager.Open(context.Background(), "u1")
	req.NoError(err)
	defer manager.Close(session)
	conn := transport.nextConn(t)

	req.NoError(session.Publish(domain.SendDestination, domain.ContentTypeJSON, []byte(`{"chatRoomId":1}`)))

	sent := conn.sentFrames()
	req.Len(sent, 1)
	req.Equal(domain.SendDestination, sent[0].Destination)
	req.Equal(domain.ContentTypeJSON, sent[0].ContentType)
}
