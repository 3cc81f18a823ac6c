package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedinhealth/clinic-automation/internal/gateway"
)

type memCredentials struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCredentials() *memCredentials {
	return &memCredentials{data: make(map[string][]byte)}
}

func (m *memCredentials) key(category, id string) string { return category + "/" + id }

func (m *memCredentials) Get(_ context.Context, category, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[m.key(category, id)], nil
}

func (m *memCredentials) Put(_ context.Context, category, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.key(category, id)] = data
	return nil
}

func (m *memCredentials) Delete(_ context.Context, category, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, m.key(category, id))
	return nil
}

// bridgeScript drives one fake bridge connection.
type bridgeScript func(t *testing.T, conn *websocket.Conn, dialCount int)

type fakeBridge struct {
	t      *testing.T
	srv    *httptest.Server
	script bridgeScript

	mu    sync.Mutex
	dials int
}

func newFakeBridge(t *testing.T, script bridgeScript) *fakeBridge {
	b := &fakeBridge{t: t, script: script}
	upgrader := websocket.Upgrader{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.mu.Lock()
		b.dials++
		n := b.dials
		b.mu.Unlock()
		defer conn.Close()
		b.script(t, conn, n)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBridge) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func (b *fakeBridge) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func readAuth(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	require.Equal(t, "auth", f.Type)
	return f
}

func TestAutomatonQRThenConnected(t *testing.T) {
	creds := newMemCredentials()
	release := make(chan struct{})
	bridge := newFakeBridge(t, func(t *testing.T, conn *websocket.Conn, _ int) {
		readAuth(t, conn)
		require.NoError(t, conn.WriteJSON(frame{Type: "qr", QR: "pairing-payload"}))
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, conn.WriteJSON(frame{
			Type:   "session",
			Number: "+5491155550000",
			Credentials: &credentialBlob{
				Category: credentialCategory, ID: "test-device", Data: []byte("opaque"),
			},
		}))
		<-release
	})

	client := NewClient(Config{
		URL: bridge.url(), Device: "test-device", Credentials: creds,
		ReconnectBase: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		st := client.Status()
		return st.State == StateWaitingQR && st.QR == "pairing-payload"
	})

	waitFor(t, 2*time.Second, func() bool {
		return client.Status().State == StateConnected
	})
	assert.Equal(t, "+5491155550000", client.Status().Number)
	assert.Empty(t, client.Status().QR, "QR cleared once paired")

	stored, err := creds.Get(ctx, credentialCategory, "test-device")
	require.NoError(t, err)
	assert.Equal(t, []byte("opaque"), stored)
	close(release)
}

func TestReconnectAfterUnexpectedClose(t *testing.T) {
	hold := make(chan struct{})
	bridge := newFakeBridge(t, func(t *testing.T, conn *websocket.Conn, dial int) {
		readAuth(t, conn)
		if dial == 1 {
			return // drop the connection without warning
		}
		require.NoError(t, conn.WriteJSON(frame{Type: "session", Number: "+549115555"}))
		<-hold
	})

	client := NewClient(Config{
		URL: bridge.url(), Device: "dev", Credentials: newMemCredentials(),
		ReconnectBase: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	waitFor(t, 2*time.Second, func() bool { return bridge.dialCount() >= 2 })
	waitFor(t, 2*time.Second, func() bool { return client.Connected() })
	close(hold)
}

func TestLogoutStopsReconnect(t *testing.T) {
	creds := newMemCredentials()
	require.NoError(t, creds.Put(context.Background(), credentialCategory, "dev", []byte("blob")))

	connected := make(chan struct{}, 1)
	bridge := newFakeBridge(t, func(t *testing.T, conn *websocket.Conn, _ int) {
		f := readAuth(t, conn)
		require.NotNil(t, f.Credentials, "stored credentials presented on connect")
		require.NoError(t, conn.WriteJSON(frame{Type: "session", Number: "+549115555"}))
		connected <- struct{}{}
		for {
			var in frame
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
		}
	})

	client := NewClient(Config{
		URL: bridge.url(), Device: "dev", Credentials: creds,
		ReconnectBase: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(done)
	}()

	<-connected
	waitFor(t, 2*time.Second, func() bool { return client.Connected() })
	require.NoError(t, client.Logout(ctx))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after logout")
	}
	assert.Equal(t, 1, bridge.dialCount(), "no reconnect after explicit logout")

	stored, err := creds.Get(ctx, credentialCategory, "dev")
	require.NoError(t, err)
	assert.Nil(t, stored, "credentials dropped on logout")
}

func TestSendTextRoundtrip(t *testing.T) {
	bridge := newFakeBridge(t, func(t *testing.T, conn *websocket.Conn, _ int) {
		readAuth(t, conn)
		require.NoError(t, conn.WriteJSON(frame{Type: "session"}))
		for {
			var in frame
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			if in.Type == "send" {
				require.Equal(t, "+5491155550101", in.Send.To)
				require.Equal(t, "hola", in.Send.Text)
				require.NoError(t, conn.WriteJSON(frame{
					Type: "ack", ID: in.ID,
					Ack: &ackPayload{MessageID: "3EB0-SESSION-MSG"},
				}))
			}
		}
	})

	client := NewClient(Config{URL: bridge.url(), Device: "dev"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	waitFor(t, 2*time.Second, func() bool { return client.Connected() })

	result, err := client.SendText(ctx, "+5491155550101", "hola")
	require.NoError(t, err)
	assert.Equal(t, "3EB0-SESSION-MSG", result.MessageID)
}

func TestSendWhileDisconnected(t *testing.T) {
	client := NewClient(Config{URL: "ws://127.0.0.1:1", Device: "dev"})
	_, err := client.SendText(context.Background(), "+549", "hola")
	assert.EqualError(t, err, "session: not connected")
}

func TestInboundEventsReachHandler(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	bridge := newFakeBridge(t, func(t *testing.T, conn *websocket.Conn, _ int) {
		readAuth(t, conn)
		require.NoError(t, conn.WriteJSON(frame{Type: "session"}))
		require.NoError(t, conn.WriteJSON(frame{Type: "message", Message: &inboundPayload{
			MessageID: "MSG-1",
			Sender:    "5491155550101@s.whatsapp.net",
			Text:      "hola, quiero reprogramar",
			Timestamp: time.Now(),
		}}))
		<-hold
	})

	received := make(chan InboundMessage, 1)
	client := NewClient(Config{URL: bridge.url(), Device: "dev"})
	client.OnMessage(func(_ context.Context, msg InboundMessage) {
		received <- msg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	select {
	case msg := <-received:
		assert.Equal(t, "MSG-1", msg.MessageID)
		assert.Equal(t, "5491155550101@s.whatsapp.net", msg.SenderID)
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message never reached handler")
	}
}

func TestSendMediaPayload(t *testing.T) {
	bridge := newFakeBridge(t, func(t *testing.T, conn *websocket.Conn, _ int) {
		readAuth(t, conn)
		require.NoError(t, conn.WriteJSON(frame{Type: "session"}))
		for {
			var in frame
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			if in.Type == "send" {
				require.Equal(t, "document", in.Send.Kind)
				require.Equal(t, "indicaciones.pdf", in.Send.Caption)
				require.NoError(t, conn.WriteJSON(frame{
					Type: "ack", ID: in.ID, Ack: &ackPayload{MessageID: "DOC-1"},
				}))
			}
		}
	})

	client := NewClient(Config{URL: bridge.url(), Device: "dev"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	waitFor(t, 2*time.Second, func() bool { return client.Connected() })

	result, err := client.SendMedia(ctx, "+549115555", gateway.MediaDocument,
		"https://cedin.example/indicaciones.pdf", "indicaciones.pdf")
	require.NoError(t, err)
	assert.Equal(t, "DOC-1", result.MessageID)
}
