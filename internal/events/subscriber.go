package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	maxRetries    = 3
	retryDelaySec = 2
	dlqSubject    = "page.content.failed"
)

type ContentEditedEvent struct {
	EventType string    `json:"event_type"`
	PageID    uuid.UUID `json:"page_id"`
	Content   string    `json:"content"`
}

// ContentSink persists an edited page body. Implemented by the page service.
type ContentSink interface {
	PersistContent(ctx context.Context, pageID uuid.UUID, content string) error
}

type ContentSubscriber struct {
	natsConn *nats.Conn
	sink     ContentSink
}

func NewContentSubscriber(natsURL string, sink ContentSink) (*ContentSubscriber, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}
	log.Println("✅ Content subscriber connected to NATS.")

	subscriber := &ContentSubscriber{
		natsConn: nc,
		sink:     sink,
	}

	subscriber.subscribeToContentEdits()

	return subscriber, nil
}

func (s *ContentSubscriber) subscribeToContentEdits() {
	_, err := s.natsConn.Subscribe("page.content.updated.*", func(msg *nats.Msg) {
		var event ContentEditedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("❌ Failed to unmarshal content edit event: %v", err)
			return
		}

		log.Printf("📨 Content edit received for page %s", event.PageID)

		var saveErr error
		for attempt := 1; attempt <= maxRetries; attempt++ {
			saveErr = s.sink.PersistContent(context.Background(), event.PageID, event.Content)
			if saveErr == nil {
				log.Printf("Content for page %s persisted successfully (Retry %d)", event.PageID, attempt)
				return
			}

			log.Printf("Failed persisting content (Retry %d): %v. Retrying in %d seconds...", attempt, saveErr, retryDelaySec)
			time.Sleep(time.Second * retryDelaySec)
		}

		log.Printf("FAILED COMPLETELY to persist content after %d attempts. Edit may be lost. Page: %s. Last error: %v", maxRetries, event.PageID, saveErr)

		err := s.natsConn.Publish(dlqSubject, msg.Data)

		if err != nil {
			log.Printf("Failed to publish to DLQ '%s': %v", dlqSubject, err)
		} else {
			log.Printf("Published failed content edit to DLQ '%s'", dlqSubject)
		}
	})
	if err != nil {
		log.Printf("Failed to subscribe to content edit event: %v", err)
	} else {
		log.Println("👂 Content subscriber listening to event page.content.updated.*")
	}
}
