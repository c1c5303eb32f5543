package notification

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

type fakeConn struct {
	mu       sync.Mutex
	messages []any
	failWith error
	closed   bool
	deadline time.Time
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.messages = append(c.messages, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestHub_PushToAllConnections(t *testing.T) {
	h := NewHub(nil)
	first, second, other := &fakeConn{}, &fakeConn{}, &fakeConn{}

	h.Register("u1", first)
	h.Register("u1", second)
	h.Register("u2", other)

	assert.Equal(t, 2, h.Push(context.Background(), "u1", "hello"))
	assert.Equal(t, []any{"hello"}, first.messages)
	assert.Equal(t, []any{"hello"}, second.messages)
	assert.Empty(t, other.messages)

	assert.Equal(t, 0, h.Push(context.Background(), "nobody", "hello"))
}

func TestHub_Unregister(t *testing.T) {
	h := NewHub(nil)
	conn := &fakeConn{}

	unregister := h.Register("u1", conn)
	require.Equal(t, 1, h.Connections("u1"))

	unregister()
	unregister()
	assert.Equal(t, 0, h.Connections("u1"))
	assert.Equal(t, 0, h.Push(context.Background(), "u1", "hello"))
}

func TestHub_DropsBrokenConnection(t *testing.T) {
	h := NewHub(nil)
	broken := &fakeConn{failWith: errors.New("broken pipe")}
	healthy := &fakeConn{}

	h.Register("u1", broken)
	h.Register("u1", healthy)

	assert.Equal(t, 1, h.Push(context.Background(), "u1", "hello"))
	assert.True(t, broken.closed)
	assert.Equal(t, 1, h.Connections("u1"))
}

func TestHub_Serve(t *testing.T) {
	h := NewHub(nil)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve("u1", conn)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.Connections("u1") == 1 }, time.Second, 10*time.Millisecond)

	sent := model.Notification{ID: "n1", Type: "order", Message: "hi", UserID: "u1"}
	require.Equal(t, 1, h.Push(context.Background(), "u1", sent))

	var got model.Notification
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, "hi", got.Message)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.Connections("u1") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_WriteDeadlineFollowsContext(t *testing.T) {
	h := NewHub(nil)
	conn := &fakeConn{}
	h.Register("u1", conn)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ctxDeadline, _ := ctx.Deadline()

	require.Equal(t, 1, h.Push(ctx, "u1", "hello"))
	assert.False(t, conn.deadline.IsZero())
	assert.False(t, conn.deadline.After(ctxDeadline))

	require.Equal(t, 1, h.Push(context.Background(), "u1", "again"))
	assert.WithinDuration(t, time.Now().Add(writeWait), conn.deadline, time.Second)
}

func TestHub_CancelledContextSkipsWrite(t *testing.T) {
	h := NewHub(nil)
	conn := &fakeConn{}
	h.Register("u1", conn)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0, h.Push(ctx, "u1", "hello"))
	assert.Empty(t, conn.messages)
	assert.False(t, conn.closed)
	assert.Equal(t, 1, h.Connections("u1"))
}

func TestHub_StalledReaderDoesNotBlockPush(t *testing.T) {
	h := NewHub(nil)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve("u1", conn)
	}))
	defer srv.Close()

	// Клиент подключается и ничего не читает.
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Connections("u1") == 1 }, time.Second, 10*time.Millisecond)

	payload := strings.Repeat("x", 1<<20)
	for i := 0; i < 512 && h.Connections("u1") > 0; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		start := time.Now()
		h.Push(ctx, "u1", payload)
		cancel()
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Fatalf("push %d took %s with a 100ms context", i, elapsed)
		}
	}
	assert.Equal(t, 0, h.Connections("u1"))
}
