package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nadavw/callbridge/internal/outcome"
)

// Publisher delivers call lifecycle events to the business side.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// CallEnded publishes one finished-call event on
// <prefix>/calls/<tenant>/ended.
func CallEnded(ctx context.Context, p Publisher, prefix string, record outcome.Record) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode call-ended event: %w", err)
	}
	topic := fmt.Sprintf("%s/calls/%s/ended", prefix, record.TenantID)
	return p.Publish(ctx, topic, payload)
}
