package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/messenjrali/msgr/internal/bus"
	"github.com/messenjrali/msgr/internal/store"
	"go.uber.org/zap"
)

// MessageSender is the interface for delivering a queued message to the
// backend.
type MessageSender interface {
	SendMessage(ctx context.Context, conversationID, clientMsgID, content string) (serverMsgID string, err error)
}

// Sender drains the outbox and delivers queued messages.
type Sender struct {
	db     *store.DB
	sender MessageSender
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, sender MessageSender, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		db:     db,
		sender: sender,
		bus:    b,
		logger: logger,
	}
}

// Enqueue puts a message on the outbox and returns its client message id.
// The drain loop picks it up on the next tick.
func (s *Sender) Enqueue(conversationID, body string) (string, error) {
	clientMsgID := uuid.NewString()
	if err := s.db.QueueOutbox(clientMsgID, conversationID, body); err != nil {
		return "", err
	}
	return clientMsgID, nil
}

// Start begins polling the outbox for pending messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}

		serverMsgID, err := s.sender.SendMessage(ctx, entry.ConversationID, entry.ClientMsgID, entry.Body)
		if err != nil {
			s.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			s.bus.Publish(bus.Event{
				Kind:      "outbox.send_failed",
				Timestamp: time.Now(),
				Payload: map[string]string{
					"client_msg_id":   entry.ClientMsgID,
					"conversation_id": entry.ConversationID,
					"error":           err.Error(),
				},
			})
			continue
		}

		if err := s.db.MarkOutboxSent(entry.ClientMsgID, serverMsgID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}

		s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("server_msg_id", serverMsgID))
		s.bus.Publish(bus.Event{
			Kind:      "outbox.send_ack",
			Timestamp: time.Now(),
			Payload: map[string]string{
				"client_msg_id":   entry.ClientMsgID,
				"conversation_id": entry.ConversationID,
				"server_msg_id":   serverMsgID,
			},
		})
	}
}
