package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classmate/internal/apperror"
	"classmate/internal/model"
	"classmate/internal/repository"

	"go.uber.org/zap"
)

const (
	NotificationExchange   = "notification_exchange"
	NotificationQueueName  = "notification_queue"
	NotificationRoutingKey = "notification"
)

// Broadcaster pushes a payload to every open connection of a user.
type Broadcaster interface {
	BroadcastToUser(userID string, payload map[string]interface{})
}

// Publisher sends a message to a broker exchange.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

type NotificationService interface {
	Notifier
	GetNotifications(ctx context.Context, callerID string, limit, offset int) ([]*model.Notification, error)
	GetUnreadCount(ctx context.Context, callerID string) (int64, error)
	MarkAsRead(ctx context.Context, notificationID, callerID string) error
	MarkAllAsRead(ctx context.Context, callerID string) error
	PurgeRead(ctx context.Context, olderThan time.Duration) (int64, error)
	SetBroadcaster(hub Broadcaster)
}

type notificationService struct {
	notifRepo repository.NotificationRepository
	publisher Publisher
	hub       Broadcaster
	logger    *zap.Logger
}

// NotificationMessage represents the message structure for RabbitMQ
type NotificationMessage struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	ActorID   string                 `json:"actor_id,omitempty"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	TargetID  string                 `json:"target_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Payload is the websocket form of the message.
func (m NotificationMessage) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		"id":         m.ID,
		"user_id":    m.UserID,
		"type":       m.Type,
		"title":      m.Title,
		"message":    m.Message,
		"is_read":    false,
		"created_at": m.Timestamp.Format(time.RFC3339),
	}
	if m.ActorID != "" {
		payload["actor_id"] = m.ActorID
	}
	if m.TargetID != "" {
		payload["target_id"] = m.TargetID
	}
	if m.Data != nil {
		payload["data"] = m.Data
	}
	return payload
}

// NewNotificationService builds the service. publisher may be nil, in which case
// notifications go straight to the websocket hub.
func NewNotificationService(notifRepo repository.NotificationRepository, publisher Publisher, logger *zap.Logger) NotificationService {
	return &notificationService{
		notifRepo: notifRepo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *notificationService) SetBroadcaster(hub Broadcaster) {
	s.hub = hub
}

func (s *notificationService) FriendRequestReceived(ctx context.Context, req *model.FriendRequest, sender *model.PublicProfile) error {
	name := displayName(sender)
	return s.send(ctx, req.ToUserID, req.FromUserID, req.ID,
		model.NotificationTypeFriendRequest,
		"New Friend Request",
		fmt.Sprintf("%s sent you a friend request", name),
		map[string]interface{}{
			"request_id":  req.ID,
			"sender_id":   req.FromUserID,
			"sender_name": name,
		},
	)
}

func (s *notificationService) FriendRequestAccepted(ctx context.Context, req *model.FriendRequest, accepter *model.PublicProfile) error {
	name := displayName(accepter)
	return s.send(ctx, req.FromUserID, req.ToUserID, req.ID,
		model.NotificationTypeFriendAccepted,
		"Friend Request Accepted",
		fmt.Sprintf("%s accepted your friend request", name),
		map[string]interface{}{
			"request_id":  req.ID,
			"friend_id":   req.ToUserID,
			"friend_name": name,
		},
	)
}

// send persists the notification, then publishes it to the broker or, without
// one, pushes it to the hub directly.
func (s *notificationService) send(ctx context.Context, userID, actorID, targetID, notifType, title, message string, data map[string]interface{}) error {
	notification := &model.Notification{
		UserID:   userID,
		ActorID:  &actorID,
		Type:     notifType,
		Title:    title,
		Message:  message,
		TargetID: &targetID,
	}
	if data != nil {
		if dataJSON, err := json.Marshal(data); err == nil {
			notification.Data = string(dataJSON)
		}
	}

	if err := s.notifRepo.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	msg := NotificationMessage{
		ID:        notification.ID,
		UserID:    userID,
		ActorID:   actorID,
		Type:      notifType,
		Title:     title,
		Message:   message,
		TargetID:  targetID,
		Data:      data,
		Timestamp: notification.CreatedAt,
	}

	if s.publisher != nil {
		body, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal notification message: %w", err)
		}
		err = s.publisher.Publish(ctx, NotificationExchange, NotificationRoutingKey, body)
		if err == nil {
			return nil
		}
		// Already saved; fall back to a direct push.
		s.logger.Warn("failed to publish notification", zap.String("notification_id", notification.ID), zap.Error(err))
	}

	if s.hub != nil {
		s.hub.BroadcastToUser(userID, msg.Payload())
	}
	return nil
}

func (s *notificationService) GetNotifications(ctx context.Context, callerID string, limit, offset int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	notifications, err := s.notifRepo.FindByUserID(ctx, callerID, limit, offset)
	if err != nil {
		return nil, storeErr(err, "list notifications")
	}
	return notifications, nil
}

func (s *notificationService) GetUnreadCount(ctx context.Context, callerID string) (int64, error) {
	count, err := s.notifRepo.CountUnreadByUserID(ctx, callerID)
	if err != nil {
		return 0, storeErr(err, "count notifications")
	}
	return count, nil
}

// MarkAsRead marks a notification as read
func (s *notificationService) MarkAsRead(ctx context.Context, notificationID, callerID string) error {
	notification, err := s.notifRepo.FindByID(ctx, notificationID)
	if err != nil {
		return lookupErr(err, "notification not found", "mark notification read")
	}
	if notification.UserID != callerID {
		return apperror.Forbidden("you can only mark your own notifications as read")
	}
	return storeErr(s.notifRepo.MarkAsRead(ctx, notificationID), "mark notification read")
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, callerID string) error {
	return storeErr(s.notifRepo.MarkAllAsRead(ctx, callerID), "mark notifications read")
}

// PurgeRead deletes read notifications older than olderThan.
func (s *notificationService) PurgeRead(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	n, err := s.notifRepo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, storeErr(err, "purge notifications")
	}
	s.logger.Info("read notifications purged", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	return n, nil
}

func displayName(p *model.PublicProfile) string {
	if p != nil && p.Username != nil && *p.Username != "" {
		return *p.Username
	}
	return "Someone"
}
