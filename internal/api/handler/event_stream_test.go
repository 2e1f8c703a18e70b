package handler

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/slide_review_server/internal/model"
	"github.com/qs3c/slide_review_server/internal/model/dto"
	"github.com/qs3c/slide_review_server/internal/pkg/response"
	"github.com/qs3c/slide_review_server/internal/pkg/ws"
)

func dialStream(t *testing.T, server *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/sessions/" + sessionID + "/events/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) response.Response {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var resp response.Response
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestEventStreamHandler_FrameIsBatch(t *testing.T) {
	tc := setupHandlers(t)
	router := tc.router(testReviewer)
	sessionID := beginReview(t, router)

	server := httptest.NewServer(router)
	defer server.Close()
	conn := dialStream(t, server, sessionID)

	require.NoError(t, conn.WriteJSON(dto.IngestRequest{Events: sampleBatch()}))
	resp := readEnvelope(t, conn)
	require.Equal(t, response.CodeSuccess, resp.Code, resp.Message)
	assert.Equal(t, float64(4), dataMap(t, resp)["inserted_count"])

	// A bad frame is answered and the stream stays open
	batch := sampleBatch()
	batch[2].ClickX0 = nil
	require.NoError(t, conn.WriteJSON(dto.IngestRequest{Events: batch}))
	resp = readEnvelope(t, conn)
	assert.Equal(t, response.CodeParamError, resp.Code)
	assert.Equal(t, float64(2), dataMap(t, resp)["index"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, response.CodeParamError, readEnvelope(t, conn).Code)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x01}))
	assert.Equal(t, response.CodeParamError, readEnvelope(t, conn).Code)

	var count int64
	tc.DB.Model(&model.InteractionEvent{}).Where("session_id = ?", sessionID).Count(&count)
	assert.Equal(t, int64(4), count)
}

func TestEventStreamHandler_ReceivesLifecyclePush(t *testing.T) {
	tc := setupHandlers(t)
	router := tc.router(testReviewer)
	sessionID := beginReview(t, router)

	server := httptest.NewServer(router)
	defer server.Close()
	conn := dialStream(t, server, sessionID)

	require.Eventually(t, func() bool { return tc.Hub.IsStreaming(sessionID) }, time.Second, 10*time.Millisecond)
	require.NoError(t, tc.Hub.SendToSession(sessionID, &ws.Message{Type: "session_completed", Data: map[string]string{"label": "benign"}}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "session_completed", msg.Type)

	conn.Close()
	assert.Eventually(t, func() bool { return !tc.Hub.IsStreaming(sessionID) }, time.Second, 10*time.Millisecond)
}

func TestEventStreamHandler_UnknownSessionRejectedBeforeUpgrade(t *testing.T) {
	tc := setupHandlers(t)
	server := httptest.NewServer(tc.router(testReviewer))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/sessions/missing/events/stream"
	_, httpResp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, httpResp)
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	require.NoError(t, err)
	var resp response.Response
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, response.CodeResourceNotFound, resp.Code)
}

func TestEventStreamHandler_AbandonedFrameRollsBack(t *testing.T) {
	tests := []struct {
		name    string
		abandon func(tc *testContext, conn *websocket.Conn)
	}{
		{
			name:    "peer disconnects",
			abandon: func(_ *testContext, conn *websocket.Conn) { conn.Close() },
		},
		{
			name:    "server shuts down",
			abandon: func(tc *testContext, _ *websocket.Conn) { tc.Hub.Close() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := setupHandlers(t)
			router := tc.router(testReviewer)
			sessionID := beginReview(t, router)

			server := httptest.NewServer(router)
			defer server.Close()
			conn := dialStream(t, server, sessionID)

			// Hold the insert until the frame's context ends
			entered := make(chan struct{})
			cancelled := make(chan bool, 1)
			var once sync.Once
			err := tc.DB.Callback().Create().Before("gorm:create").Register("test:hold_batch", func(tx *gorm.DB) {
				once.Do(func() {
					close(entered)
					select {
					case <-tx.Statement.Context.Done():
						cancelled <- true
						tx.AddError(tx.Statement.Context.Err())
					case <-time.After(3 * time.Second):
						cancelled <- false
					}
				})
			})
			require.NoError(t, err)

			require.NoError(t, conn.WriteJSON(dto.IngestRequest{Events: sampleBatch()}))
			select {
			case <-entered:
			case <-time.After(2 * time.Second):
				t.Fatal("batch never reached the database")
			}

			tt.abandon(tc, conn)

			assert.True(t, <-cancelled)
			require.Eventually(t, func() bool { return !tc.Hub.IsStreaming(sessionID) }, 2*time.Second, 10*time.Millisecond)

			var count int64
			tc.DB.Model(&model.InteractionEvent{}).Where("session_id = ?", sessionID).Count(&count)
			assert.Zero(t, count)
		})
	}
}
