package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fajar-dev/be-sele-sele/internal/events"
	"github.com/fajar-dev/be-sele-sele/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPageCreatedEvent_Marshal(t *testing.T) {
	p := &model.Page{ID: uuid.New(), Title: "Doc", CreatedAt: time.Now()}
	ev := events.PageCreatedEvent{
		EventType:  "page.created",
		PageID:     p.ID,
		Title:      p.Title,
		OwnerEmail: "alice@b.com",
		CreatedAt:  p.CreatedAt,
	}

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, "page.created", decoded["event_type"])
	require.Equal(t, "alice@b.com", decoded["owner_email"])
}

func TestMemberEvent_Marshal(t *testing.T) {
	ev := events.MemberEvent{
		EventType: "page.member.added",
		PageID:    uuid.New(),
		Email:     "bob@b.com",
		At:        time.Now(),
	}

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, "page.member.added", decoded["event_type"])
	require.Equal(t, "bob@b.com", decoded["email"])
}

func TestContentEditedEvent_Unmarshal(t *testing.T) {
	pageID := uuid.New()
	payload := []byte(`{"event_type":"page.content.updated","page_id":"` + pageID.String() + `","content":"# hi"}`)

	var ev events.ContentEditedEvent
	require.NoError(t, json.Unmarshal(payload, &ev))
	require.Equal(t, pageID, ev.PageID)
	require.Equal(t, "# hi", ev.Content)
}
