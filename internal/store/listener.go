package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const (
	messagesChannel = "buzz_messages"
	profilesChannel = "buzz_profiles"

	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
)

// messageRow mirrors the JSON payload emitted by the messages insert trigger.
type messageRow struct {
	Id           string    `json:"id"`
	Text         string    `json:"text"`
	SenderId     string    `json:"sender_id"`
	IsAutomated  bool      `json:"is_automated"`
	SenderName   string    `json:"sender_name"`
	SenderAvatar string    `json:"sender_avatar"`
	CreatedAt    time.Time `json:"created_at"`
}

// profileRow mirrors the JSON payload emitted by the profiles update trigger.
type profileRow struct {
	Id           string   `json:"id"`
	Name         string   `json:"name"`
	Avatar       string   `json:"avatar"`
	Tags         []string `json:"tags"`
	CustomStatus string   `json:"custom_status"`
	IsAdmin      bool     `json:"is_admin"`
}

func (db *PgBuzzRepository) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	listener := pq.NewListener(db.dsn, listenerMinReconnect, listenerMaxReconnect, nil)

	for _, channel := range []string{messagesChannel, profilesChannel} {
		if err := listener.Listen(channel); err != nil {
			listener.Close()
			return nil, fmt.Errorf("listen on %q: %w", channel, err)
		}
	}

	events := make(chan ChangeEvent, 256)
	go func() {
		defer close(events)
		defer listener.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil {
					// connection loss; pq reconnects and the
					// backend re-delivers nothing, consumers
					// self-heal on the next event
					continue
				}

				event, err := decodeNotification(n.Channel, []byte(n.Extra))
				if err != nil {
					continue
				}

				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

func decodeNotification(channel string, payload []byte) (ChangeEvent, error) {
	switch channel {
	case messagesChannel:
		var row messageRow
		if err := json.Unmarshal(payload, &row); err != nil {
			return ChangeEvent{}, fmt.Errorf("decode message row: %w", err)
		}
		return ChangeEvent{
			Event: EventMessageInsert,
			Message: &Message{
				Id:           row.Id,
				Text:         row.Text,
				SenderId:     row.SenderId,
				IsAutomated:  row.IsAutomated,
				SenderName:   row.SenderName,
				SenderAvatar: row.SenderAvatar,
				CreatedAt:    row.CreatedAt,
			},
		}, nil
	case profilesChannel:
		var row profileRow
		if err := json.Unmarshal(payload, &row); err != nil {
			return ChangeEvent{}, fmt.Errorf("decode profile row: %w", err)
		}
		return ChangeEvent{
			Event: EventProfileUpdate,
			Profile: &Profile{
				Id:           row.Id,
				Name:         row.Name,
				Avatar:       row.Avatar,
				Tags:         row.Tags,
				CustomStatus: row.CustomStatus,
				IsAdmin:      row.IsAdmin,
			},
		}, nil
	default:
		return ChangeEvent{}, fmt.Errorf("unknown notification channel %q", channel)
	}
}
