package service

import (
	"context"
	"encoding/json"

	"enchiridion/internal/logging"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// PushMessage is the outbox payload of kind "broadcast_push".
type PushMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushService sends broadcast notifications to an FCM topic.
type PushService struct {
	client *messaging.Client
	topic  string
}

// NewPushService returns nil if Firebase is not configured.
func NewPushService(serviceAccountPath, topic string, log *zap.Logger) *PushService {
	if serviceAccountPath == "" {
		return nil
	}
	ctx := context.Background()
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		log.Error("init firebase app", logging.Err(err))
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Error("init messaging client", logging.Err(err))
		return nil
	}
	return &PushService{client: client, topic: topic}
}

func (s *PushService) Broadcast(ctx context.Context, msg PushMessage) error {
	if s == nil {
		return nil
	}
	_, err := s.client.Send(ctx, &messaging.Message{
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
		Topic:        s.topic,
		Android:      &messaging.AndroidConfig{Priority: "high"},
	})
	return err
}

// PushHandler delivers outbox messages of kind "broadcast_push".
func PushHandler(s *PushService) OutboxHandler {
	return func(ctx context.Context, payload []byte) error {
		var msg PushMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return err
		}
		return s.Broadcast(ctx, msg)
	}
}
