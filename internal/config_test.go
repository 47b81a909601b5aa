package internal

import (
	"os"
	"testing"
	"time"

	"salon-chat/storage"

	"github.com/stretchr/testify/require"
)

func TestLoad_Applies_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("STOMP_ENDPOINT", "wss://chat.test/ws")
	t.Setenv("CHAT_API_BASE_URL", "https://chat.test")

	var session SessionConfig
	var api APIConfig
	req.NoError(Load(&session, &api))

	req.Equal(5*time.Second, session.ReconnectDelay)
	req.Equal(4*time.Second, session.Heartbeat)
	req.Equal(10*time.Second, session.ConnectTimeout)
	req.Equal(3*time.Second, api.RoomCheckTimeout)
	req.Nil(api.Headers())
}

func TestLoad_Requires_Endpoint(t *testing.T) {
	req := require.New(t)
	t.Setenv("STOMP_ENDPOINT", "")
	req.NoError(os.Unsetenv("STOMP_ENDPOINT"))

	var session SessionConfig
	req.Error(Load(&session))
}

func TestParseHeaders(t *testing.T) {
	req := require.New(t)

	headers, err := ParseHeaders("userId=u1, role=CUSTOMER")
	req.NoError(err)
	req.Equal(map[string]string{"userId": "u1", "role": "CUSTOMER"}, headers)

	headers, err = ParseHeaders("")
	req.NoError(err)
	req.Nil(headers)

	_, err = ParseHeaders("broken")
	req.Error(err)
}

func TestStorageConfig_Storage(t *testing.T) {
	req := require.New(t)
	cfg := StorageConfig{Driver: "BADGER", BadgerFilepath: "/tmp/objects", PublicBaseURL: "http://localhost:8080/api/chat/files"}

	storageCfg := cfg.Storage()

	req.Equal(storage.DriverBadger, storageCfg.Driver)
	req.Equal("/tmp/objects", storageCfg.BadgerPath)
}
