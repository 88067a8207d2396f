package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/fajar-dev/be-sele-sele/internal/model"
)

type EventPublisher interface {
	PublishPageCreated(page *model.Page, ownerEmail string) error
	PublishMemberAdded(pageID uuid.UUID, email string) error
	PublishMemberRemoved(pageID uuid.UUID, email string) error
}

type NatsPublisher struct {
	conn *nats.Conn
}

func NewNatsPublisher(natsURL string) (EventPublisher, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &NatsPublisher{conn: nc}, nil
}

type PageCreatedEvent struct {
	EventType  string    `json:"event_type"`
	PageID     uuid.UUID `json:"page_id"`
	Title      string    `json:"title"`
	OwnerEmail string    `json:"owner_email"`
	CreatedAt  time.Time `json:"created_at"`
}

type MemberEvent struct {
	EventType string    `json:"event_type"`
	PageID    uuid.UUID `json:"page_id"`
	Email     string    `json:"email"`
	At        time.Time `json:"at"`
}

func (p *NatsPublisher) PublishPageCreated(page *model.Page, ownerEmail string) error {
	return p.publish("page.created", PageCreatedEvent{
		EventType:  "page.created",
		PageID:     page.ID,
		Title:      page.Title,
		OwnerEmail: ownerEmail,
		CreatedAt:  page.CreatedAt,
	})
}

func (p *NatsPublisher) PublishMemberAdded(pageID uuid.UUID, email string) error {
	return p.publish("page.member.added", MemberEvent{
		EventType: "page.member.added",
		PageID:    pageID,
		Email:     email,
		At:        time.Now(),
	})
}

func (p *NatsPublisher) PublishMemberRemoved(pageID uuid.UUID, email string) error {
	return p.publish("page.member.removed", MemberEvent{
		EventType: "page.member.removed",
		PageID:    pageID,
		Email:     email,
		At:        time.Now(),
	})
}

func (p *NatsPublisher) publish(subject string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling event JSON: %v", err)
		return err
	}

	if err := p.conn.Publish(subject, payload); err != nil {
		log.Printf("Error publishing to NATS: %v", err)
		return err
	}

	log.Printf("Published event to NATS on subject '%s'", subject)
	return nil
}
