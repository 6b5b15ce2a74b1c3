package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
)

// TextSender sends a plain text IM message to an open id
type TextSender interface {
	SendText(ctx context.Context, openID, text string) (string, error)
}

// imSender sends through the IM v1 message API
type imSender struct {
	sdk    *SDKClient
	logger *zap.Logger
}

// NewTextSender creates a TextSender backed by the Lark SDK
func NewTextSender(sdk *SDKClient, logger *zap.Logger) TextSender {
	return &imSender{sdk: sdk, logger: logger}
}

func (s *imSender) SendText(ctx context.Context, openID, text string) (string, error) {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to encode message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType("open_id").
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(openID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := s.sdk.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	return messageID, nil
}

// Messenger implements port.MessageDeliverer over Lark IM
type Messenger struct {
	sender TextSender
	logger *zap.Logger
}

// NewMessenger creates a new Lark message deliverer
func NewMessenger(sender TextSender, logger *zap.Logger) *Messenger {
	return &Messenger{
		sender: sender,
		logger: logger,
	}
}

// Deliver pushes msg to user's Lark inbox. Users without an open id are skipped.
func (m *Messenger) Deliver(ctx context.Context, user *entity.User, msg *entity.Message) error {
	if user == nil || user.LarkOpenID == "" {
		return nil
	}
	if msg.Body == "" {
		return fmt.Errorf("message body cannot be empty")
	}

	text := fmt.Sprintf("[Trip #%d] %s", msg.TripID, msg.Body)
	messageID, err := m.sender.SendText(ctx, user.LarkOpenID, text)
	if err != nil {
		m.logger.Error("Failed to deliver message",
			zap.Int64("trip_id", msg.TripID),
			zap.String("user_id", user.ID),
			zap.Error(err))
		return err
	}

	m.logger.Debug("Message delivered",
		zap.Int64("trip_id", msg.TripID),
		zap.String("user_id", user.ID),
		zap.String("lark_message_id", messageID))
	return nil
}

var _ port.MessageDeliverer = (*Messenger)(nil)
