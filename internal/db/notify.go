package db

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/auditlog/internal/dbpool"
)

var channelName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Reconnect schedule of the bridge.
const (
	reconnectInitial = 1 * time.Second
	reconnectMax     = 30 * time.Second
)

// defaultEventType is assumed for payloads that omit "type".
const defaultEventType = "log.created"

// Broadcaster fans events out to connected live-tail clients.
type Broadcaster interface {
	BroadcastEvent(eventType, tenantID string, data json.RawMessage)
}

// NotifyBridge relays pg_notify payloads from one channel to the live-tail
// hub, so inserts on any replica reach subscribers on every replica.
type NotifyBridge struct {
	log     *logrus.Logger
	pool    *dbpool.Pool
	hub     Broadcaster
	channel string
}

// NewNotifyBridge creates a NotifyBridge for channel.
func NewNotifyBridge(log *logrus.Logger, pool *dbpool.Pool, hub Broadcaster, channel string) *NotifyBridge {
	return &NotifyBridge{log: log, pool: pool, hub: hub, channel: channel}
}

// Start checks the database and runs the relay in the background until ctx
// ends. Lost connections are retried with exponential backoff.
func (b *NotifyBridge) Start(ctx context.Context) error {
	if !channelName.MatchString(b.channel) {
		return fmt.Errorf("notify bridge: invalid channel name %q", b.channel)
	}

	if err := b.pool.Ping(ctx); err != nil {
		return fmt.Errorf("notify bridge: database not reachable: %w", err)
	}

	go b.run(ctx, newReconnectBackoff())

	return nil
}

func newReconnectBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = reconnectInitial
	bo.MaxInterval = reconnectMax
	bo.MaxElapsedTime = 0
	bo.Reset()

	return bo
}

func (b *NotifyBridge) run(ctx context.Context, bo *backoff.ExponentialBackOff) {
	for ctx.Err() == nil {
		err := b.relay(ctx, bo.Reset)
		if ctx.Err() != nil {
			return
		}

		wait := bo.NextBackOff()
		b.log.WithError(err).WithFields(logrus.Fields{
			"channel":  b.channel,
			"retry_in": wait,
		}).Warn("notify bridge disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// relay holds one pooled connection in LISTEN and forwards notifications
// until it fails. listening is called once the subscription is active.
func (b *NotifyBridge) relay(ctx context.Context, listening func()) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{b.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", b.channel, err)
	}

	listening()
	b.log.WithField("channel", b.channel).Info("notify bridge listening")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("waiting for notification: %w", err)
		}

		b.forward(n)
	}
}

// notifyPayload is what the Postgres store sends with pg_notify. Rows too
// large for a notification arrive with Truncated set and no Data.
type notifyPayload struct {
	Type      string          `json:"type"`
	TenantID  string          `json:"tenant_id"`
	Data      json.RawMessage `json:"data"`
	Truncated bool            `json:"truncated"`
}

func (b *NotifyBridge) forward(n *pgconn.Notification) {
	var p notifyPayload
	if err := json.Unmarshal([]byte(n.Payload), &p); err != nil || p.TenantID == "" {
		b.log.WithField("pid", n.PID).Warn("dropping notification without tenant_id")
		return
	}

	if p.Truncated || len(p.Data) == 0 {
		b.log.WithField("tenant_id", p.TenantID).Debug("dropping truncated notification")
		return
	}

	if p.Type == "" {
		p.Type = defaultEventType
	}

	b.hub.BroadcastEvent(p.Type, p.TenantID, p.Data)
}
