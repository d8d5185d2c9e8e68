package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type batchQueuedEvent struct {
	BatchID  string    `json:"batch_id"`
	QueuedAt time.Time `json:"queued_at"`
}

func encodeEvent(event batchQueuedEvent) ([]byte, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode batch event: %w", err)
	}
	return raw, nil
}

// decodeEvent also accepts a bare batch id, as published by older producers.
func decodeEvent(data []byte) (batchQueuedEvent, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return batchQueuedEvent{}, errors.New("empty batch event")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return batchQueuedEvent{BatchID: trimmed}, nil
	}
	var event batchQueuedEvent
	if err := json.Unmarshal([]byte(trimmed), &event); err != nil {
		return batchQueuedEvent{}, fmt.Errorf("decode batch event: %w", err)
	}
	if event.BatchID == "" {
		return batchQueuedEvent{}, errors.New("batch event without batch_id")
	}
	return event, nil
}
