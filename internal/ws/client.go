package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/models"
)

const (
	writeTimeout       = 10 * time.Second
	wsReadLimit        = 4096
	clientSendBuffer   = 256
	maxConnLifetime    = 4 * time.Hour
	revalidateInterval = 15 * time.Minute
	revalidateTimeout  = 10 * time.Second
	pingInterval       = 30 * time.Second
	pingTimeout        = 10 * time.Second
	maxMissedPongs     = int32(2)
)

// CredentialValidator resolves a bearer credential to an identity.
type CredentialValidator interface {
	Identify(ctx context.Context, credential string) (models.Identity, error)
}

// Client is one live-tail connection.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	log         *logrus.Logger
	TenantID    string
	credential  string
	validator   CredentialValidator
	closeOnce   sync.Once
	connectedAt time.Time
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// NewClient creates a Client for tenantID. credential is re-checked
// periodically and the connection closes once it no longer resolves to
// tenantID.
func NewClient(hub *Hub, conn *websocket.Conn, validator CredentialValidator, credential, tenantID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, clientSendBuffer),
		log:         hub.log,
		TenantID:    tenantID,
		credential:  credential,
		validator:   validator,
		connectedAt: time.Now(),
	}
}

// ReadPump reads client messages until the connection closes.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.CloseNow() //nolint:errcheck // best-effort close on teardown
	}()

	c.conn.SetReadLimit(wsReadLimit)

	for {
		_, msg, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.log.WithField("status", websocket.CloseStatus(err)).Debug("live tail client disconnected")
			}
			return
		}

		c.handleMessage(msg)
	}
}

// handleMessage answers subscribe requests with a replay or a reset.
func (c *Client) handleMessage(raw []byte) {
	var msg SubscribeMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != MsgSubscribe {
		return
	}

	if c.hub.ReplayEvents(c, msg.LastEventID) {
		return
	}

	reset, err := json.Marshal(ResetMsg{
		Type:   MsgReset,
		Reason: "requested events no longer available, reload from the logs API",
	})
	if err != nil {
		return
	}

	select {
	case c.send <- reset:
	default:
	}
}

// WritePump writes queued frames, pings, and closes the connection on
// lifetime expiry or failed revalidation.
func (c *Client) WritePump(ctx context.Context) {
	defer c.conn.CloseNow() //nolint:errcheck // best-effort close on teardown

	lifetime := time.NewTimer(time.Until(c.connectedAt.Add(maxConnLifetime)))
	defer lifetime.Stop()

	revalidate := time.NewTicker(revalidateInterval)
	defer revalidate.Stop()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	var missedPongs atomic.Int32

	for {
		select {
		case <-ping.C:
			if c.sendPing(ctx, &missedPongs) {
				return
			}
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()

			if err != nil {
				c.log.WithError(err).Debug("live tail write failed")
				return
			}
		case <-revalidate.C:
			if !c.stillAuthorized(ctx) {
				return
			}
		case <-lifetime.C:
			c.log.Info("closing live tail: max connection lifetime exceeded")
			c.conn.Close(websocket.StatusNormalClosure, "max connection lifetime exceeded") //nolint:errcheck // best-effort
			return
		}
	}
}

// sendPing reports whether the connection should close after missed pongs.
func (c *Client) sendPing(ctx context.Context, missedPongs *atomic.Int32) bool {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := c.conn.Ping(pingCtx)
	cancel()

	if err != nil {
		if missedPongs.Add(1) >= maxMissedPongs {
			c.log.Debug("closing live tail: missed pongs")
			return true
		}
		return false
	}

	missedPongs.Store(0)

	return false
}

// stillAuthorized re-resolves the credential. Rotated API keys and expired
// tokens end the stream.
func (c *Client) stillAuthorized(ctx context.Context) bool {
	if c.validator == nil {
		return true
	}

	checkCtx, cancel := context.WithTimeout(ctx, revalidateTimeout)
	id, err := c.validator.Identify(checkCtx, c.credential)
	cancel()

	if err != nil || id.TenantID != c.TenantID {
		c.log.WithField("tenant_id", c.TenantID).Info("closing live tail: credential no longer valid")
		c.conn.Close(websocket.StatusPolicyViolation, "authentication expired") //nolint:errcheck // best-effort
		return false
	}

	return true
}
