package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"salon-chat/errors"

	"github.com/stretchr/testify/require"
)

func TestRoomClient_Exists(t *testing.T) {
	tests := []struct {
		description string
		status      int
		delay       time.Duration
		wantErr     bool
		wantMissing bool
	}{
		{"Should succeed if the room exists", http.StatusOK, 0, false, false},
		{"Should report a deleted room on 404", http.StatusNotFound, 0, true, true},
		{"Should fail without deletion on 500", http.StatusInternalServerError, 0, true, false},
		{"Should fail without deletion on 403", http.StatusForbidden, 0, true, false},
		{"Should fail without deletion on timeout", http.StatusOK, 200 * time.Millisecond, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			req := require.New(t)
			type received struct{ path, auth string }
			requests := make(chan received, 1)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests <- received{path: r.URL.Path, auth: r.Header.Get("Authorization")}
				if tt.delay > 0 {
					select {
					case <-time.After(tt.delay):
					case <-r.Context().Done():
						return
					}
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()
			client := NewRoomClient(server.URL+"/", server.Client(), 50*time.Millisecond, map[string]string{"Authorization": "Bearer t"})

			err := client.Exists(context.Background(), 42)

			got := <-requests
			req.Equal("/api/chat/room/42", got.path)
			req.Equal("Bearer t", got.auth)
			if !tt.wantErr {
				req.NoError(err)
				return
			}
			req.Error(err)
			req.Equal(tt.wantMissing, errors.Is(err, errors.ErrRoomNotFound))
		})
	}
}
