// Package session implements the persistent messaging gateway: a
// long-lived authenticated session held open against a local bridge
// service, with its own connect/reconnect automaton and persisted
// credential material.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cedinhealth/clinic-automation/internal/gateway"
	"github.com/cedinhealth/clinic-automation/pkg/logging"
)

// State is the session automaton state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateWaitingQR    State = "waiting_qr"
	StateConnected    State = "connected"
)

const (
	credentialCategory = "session"
	sendAckTimeout     = 15 * time.Second
	eventBuffer        = 128
)

// Status is a snapshot of the session automaton.
type Status struct {
	State     State
	Connected bool
	// QR is the current pairing artifact, present only in waiting_qr.
	QR     string
	Number string
}

// Handler receives inbound messages decoupled from the read loop.
type Handler func(ctx context.Context, msg InboundMessage)

// StatusHandler receives delivery-status updates correlated by the
// gateway message id.
type StatusHandler func(ctx context.Context, externalID, status string)

// Client drives the session gateway connection.
type Client struct {
	url           string
	device        string
	creds         CredentialStore
	logger        *logging.Logger
	dialer        *websocket.Dialer
	reconnectBase time.Duration
	reconnectMax  time.Duration

	mu      sync.Mutex
	state   State
	qr      string
	number  string
	conn    *websocket.Conn
	logout  bool
	pending map[string]chan ackPayload

	events        chan InboundMessage
	handler       Handler
	statusHandler StatusHandler
}

// Config configures the session client.
type Config struct {
	URL           string
	Device        string
	Credentials   CredentialStore
	Logger        *logging.Logger
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
}

// NewClient creates a session gateway client.
func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = 2 * time.Second
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = time.Minute
	}
	return &Client{
		url:           cfg.URL,
		device:        cfg.Device,
		creds:         cfg.Credentials,
		logger:        cfg.Logger,
		dialer:        websocket.DefaultDialer,
		reconnectBase: cfg.ReconnectBase,
		reconnectMax:  cfg.ReconnectMax,
		state:         StateDisconnected,
		pending:       make(map[string]chan ackPayload),
		events:        make(chan InboundMessage, eventBuffer),
	}
}

// OnMessage registers the inbound message handler. Must be called before
// Run.
func (c *Client) OnMessage(h Handler) {
	c.handler = h
}

// OnStatusUpdate registers the delivery-status handler. Must be called
// before Run.
func (c *Client) OnStatusUpdate(h StatusHandler) {
	c.statusHandler = h
}

// Run connects and keeps the session alive until ctx is cancelled or a
// logout is requested. Unexpected closes trigger reconnection with
// exponential backoff; an explicit logout does not.
func (c *Client) Run(ctx context.Context) {
	go c.dispatchLoop(ctx)

	backoff := c.reconnectBase
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.connectOnce(ctx)
		c.setState(StateDisconnected)

		c.mu.Lock()
		loggedOut := c.logout
		c.mu.Unlock()
		if loggedOut {
			c.logger.Info("session gateway logged out, not reconnecting")
			return
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warn("session gateway disconnected", "error", err, "retry_in", backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.reconnectMax {
			backoff = c.reconnectMax
		}
	}
}

// connectOnce dials the bridge, authenticates with stored credentials and
// services the read loop until the connection drops.
func (c *Client) connectOnce(ctx context.Context) error {
	c.setState(StateConnecting)

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("session: dial %s: %w", c.url, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		conn.Close()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	auth := frame{Type: "auth", Device: c.device}
	if c.creds != nil {
		data, err := c.creds.Get(ctx, credentialCategory, c.device)
		if err != nil {
			return err
		}
		if len(data) > 0 {
			auth.Credentials = &credentialBlob{Category: credentialCategory, ID: c.device, Data: data}
		}
	}
	if err := c.writeFrame(auth); err != nil {
		return fmt.Errorf("session: send auth: %w", err)
	}

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("session: read: %w", err)
		}
		if err := c.handleFrame(ctx, f); err != nil {
			return err
		}
	}
}

var errSessionClosed = errors.New("session: closed by bridge")

func (c *Client) handleFrame(ctx context.Context, f frame) error {
	switch f.Type {
	case "qr":
		c.mu.Lock()
		c.state = StateWaitingQR
		c.qr = f.QR
		c.mu.Unlock()
		c.logger.Info("session gateway waiting for QR pairing")
	case "session":
		c.mu.Lock()
		c.state = StateConnected
		c.qr = ""
		c.number = f.Number
		c.mu.Unlock()
		if f.Credentials != nil && c.creds != nil {
			if err := c.creds.Put(ctx, f.Credentials.Category, f.Credentials.ID, f.Credentials.Data); err != nil {
				c.logger.Error("session credential persist failed", "error", err)
			}
		}
		c.logger.Info("session gateway connected", "number", f.Number)
	case "message":
		if f.Message == nil {
			return nil
		}
		msg := InboundMessage{
			MessageID: f.Message.MessageID,
			SenderID:  f.Message.Sender,
			FromSelf:  f.Message.FromSelf,
			Text:      f.Message.Text,
			Button:    f.Message.Button,
			MediaURL:  f.Message.MediaURL,
			MediaType: f.Message.MediaType,
			Timestamp: f.Message.Timestamp,
		}
		select {
		case c.events <- msg:
		default:
			// The read loop must never block on handling.
			c.logger.Warn("session event queue full, dropping inbound message", "message_id", msg.MessageID)
		}
	case "ack":
		if f.Ack == nil {
			return nil
		}
		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		if ok {
			delete(c.pending, f.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- *f.Ack
		}
	case "status_update":
		if f.Status != nil && c.statusHandler != nil {
			c.statusHandler(ctx, f.Status.MessageID, f.Status.Status)
		}
	case "close":
		return errSessionClosed
	}
	return nil
}

// dispatchLoop delivers queued inbound events to the registered handler.
func (c *Client) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.events:
			if c.handler != nil {
				c.handler(ctx, msg)
			}
		}
	}
}

// SendText sends a free-form text message over the session.
func (c *Client) SendText(ctx context.Context, to, body string) (*gateway.SendResult, error) {
	return c.send(ctx, sendPayload{To: to, Text: body})
}

// SendMedia sends an image or document with an optional caption.
func (c *Client) SendMedia(ctx context.Context, to string, kind gateway.MediaKind, url, caption string) (*gateway.SendResult, error) {
	return c.send(ctx, sendPayload{To: to, Kind: string(kind), URL: url, Caption: caption})
}

func (c *Client) send(ctx context.Context, payload sendPayload) (*gateway.SendResult, error) {
	if payload.To == "" {
		return nil, errors.New("session: to required")
	}
	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return nil, errors.New("session: not connected")
	}
	id := uuid.NewString()
	ack := make(chan ackPayload, 1)
	c.pending[id] = ack
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.writeFrame(frame{Type: "send", ID: id, Send: &payload}); err != nil {
		return nil, fmt.Errorf("session: send: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(sendAckTimeout):
		return nil, errors.New("session: send ack timeout")
	case a := <-ack:
		if a.Error != "" {
			return nil, fmt.Errorf("session: send rejected: %s", a.Error)
		}
		return &gateway.SendResult{MessageID: a.MessageID}, nil
	}
}

// Status returns a snapshot of the automaton, including the pairing
// artifact while waiting for QR scan.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:     c.state,
		Connected: c.state == StateConnected,
		QR:        c.qr,
		Number:    c.number,
	}
}

// Connected reports whether the session is currently usable for sends.
func (c *Client) Connected() bool {
	return c.Status().Connected
}

// Logout ends the session permanently: the bridge is told to unpair, the
// stored credentials are dropped and the automaton stays disconnected.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.logout = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		if err := c.writeFrame(frame{Type: "logout"}); err != nil {
			c.logger.Warn("session logout frame failed", "error", err)
		}
		conn.Close()
	}
	if c.creds != nil {
		if err := c.creds.Delete(ctx, credentialCategory, c.device); err != nil {
			return err
		}
	}
	c.setState(StateDisconnected)
	return nil
}

// writeFrame serializes writes; gorilla/websocket allows one concurrent
// writer.
func (c *Client) writeFrame(f frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("session: no connection")
	}
	return c.conn.WriteJSON(f)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	if s != StateWaitingQR {
		c.qr = ""
	}
	c.mu.Unlock()
}
