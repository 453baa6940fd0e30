package service

import (
	"encoding/json"

	"classmate/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// NotificationWorker consumes notification messages from RabbitMQ and pushes to WebSocket
type NotificationWorker struct {
	rabbitMQ *util.RabbitMQClient
	hub      Broadcaster
	logger   *zap.Logger
	stopChan chan struct{}
}

func NewNotificationWorker(rabbitMQ *util.RabbitMQClient, hub Broadcaster, logger *zap.Logger) *NotificationWorker {
	return &NotificationWorker{
		rabbitMQ: rabbitMQ,
		hub:      hub,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start declares the exchange and queue and starts consuming in the background.
func (w *NotificationWorker) Start() error {
	if w.rabbitMQ == nil {
		return nil
	}

	if err := w.rabbitMQ.DeclareDirect(NotificationExchange, NotificationQueueName, NotificationRoutingKey); err != nil {
		return err
	}

	msgs, err := w.rabbitMQ.GetChannel().Consume(
		NotificationQueueName,
		"notification_worker",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		w.logger.Info("notification worker started")
		for {
			select {
			case <-w.stopChan:
				w.logger.Info("notification worker stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					w.logger.Warn("notification queue closed")
					return
				}
				w.handle(msg)
			}
		}
	}()

	return nil
}

func (w *NotificationWorker) handle(msg amqp.Delivery) {
	if err := w.process(msg.Body); err != nil {
		w.logger.Error("dropping malformed notification message", zap.Error(err))
		_ = msg.Nack(false, false)
		return
	}
	_ = msg.Ack(false)
}

func (w *NotificationWorker) process(body []byte) error {
	var notificationMsg NotificationMessage
	if err := json.Unmarshal(body, &notificationMsg); err != nil {
		return err
	}

	if w.hub != nil {
		w.hub.BroadcastToUser(notificationMsg.UserID, notificationMsg.Payload())
		w.logger.Debug("notification pushed",
			zap.String("user_id", notificationMsg.UserID),
			zap.String("type", notificationMsg.Type),
		)
	}
	return nil
}

// Stop stops the notification worker
func (w *NotificationWorker) Stop() {
	close(w.stopChan)
}
