package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is the subject root snapshots are published under.
const DefaultSubjectPrefix = "linkrank.snapshots"

// NATS publishes snapshots to:
//
//	{prefix}.partial
//	{prefix}.final
type NATS struct {
	nc     *nats.Conn
	prefix string
}

// NewNATS creates a NATS consumer. An empty prefix uses
// DefaultSubjectPrefix.
func NewNATS(nc *nats.Conn, prefix string) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATS{nc: nc, prefix: prefix}
}

// Subject returns the subject a snapshot is published on.
func (n *NATS) Subject(s Snapshot) string {
	return n.prefix + "." + s.Kind()
}

// Deliver implements Consumer.
func (n *NATS) Deliver(_ context.Context, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := n.nc.Publish(n.Subject(s), data); err != nil {
		return fmt.Errorf("publish %s snapshot: %w", s.Kind(), err)
	}
	return nil
}

// Subscribe decodes snapshots published under prefix and hands them to fn.
// Undecodable messages are logged and skipped.
func Subscribe(nc *nats.Conn, prefix string, logger *zap.Logger, fn func(Snapshot)) (*nats.Subscription, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sub, err := nc.Subscribe(prefix+".*", func(msg *nats.Msg) {
		var s Snapshot
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			logger.Warn("Discarding undecodable snapshot",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			return
		}
		fn(s)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", prefix, err)
	}
	return sub, nil
}
