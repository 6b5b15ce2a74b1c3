package lark

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/domain/entity"
)

type recordingSender struct {
	openIDs []string
	texts   []string
	err     error
}

func (s *recordingSender) SendText(ctx context.Context, openID, text string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.openIDs = append(s.openIDs, openID)
	s.texts = append(s.texts, text)
	return "om_1", nil
}

func TestMessenger_Deliver(t *testing.T) {
	sender := &recordingSender{}
	m := NewMessenger(sender, zap.NewNop())
	msg := &entity.Message{TripID: 12, Body: "Expenses approved"}

	require.NoError(t, m.Deliver(context.Background(), &entity.User{ID: "emp", LarkOpenID: "ou_emp"}, msg))
	assert.Equal(t, []string{"ou_emp"}, sender.openIDs)
	assert.Equal(t, []string{"[Trip #12] Expenses approved"}, sender.texts)
}

func TestMessenger_SkipsUsersWithoutOpenID(t *testing.T) {
	sender := &recordingSender{}
	m := NewMessenger(sender, zap.NewNop())

	require.NoError(t, m.Deliver(context.Background(), &entity.User{ID: "emp"}, &entity.Message{Body: "x"}))
	require.NoError(t, m.Deliver(context.Background(), nil, &entity.Message{Body: "x"}))
	assert.Empty(t, sender.openIDs)
}

func TestMessenger_PropagatesSendFailure(t *testing.T) {
	boom := errors.New("rate limited")
	m := NewMessenger(&recordingSender{err: boom}, zap.NewNop())

	err := m.Deliver(context.Background(), &entity.User{ID: "emp", LarkOpenID: "ou"}, &entity.Message{Body: "x"})
	assert.ErrorIs(t, err, boom)
}
