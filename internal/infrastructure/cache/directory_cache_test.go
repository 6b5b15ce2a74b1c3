package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
)

type countingRepo struct {
	users      map[string]*entity.User
	gets       int
	groupLists int
}

func newCountingRepo(users ...*entity.User) *countingRepo {
	r := &countingRepo{users: make(map[string]*entity.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *countingRepo) Upsert(ctx context.Context, user *entity.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *countingRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.gets++
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: %s", port.ErrUserNotFound, id)
}

func (r *countingRepo) ListByGroup(ctx context.Context, group string) ([]*entity.User, error) {
	r.groupLists++
	var out []*entity.User
	for _, id := range []string{"a-boss", "b-boss", "emp"} {
		if u, ok := r.users[id]; ok && u.InGroup(group) {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestDirectoryCache_GetUserHitsStoreOnce(t *testing.T) {
	repo := newCountingRepo(&entity.User{ID: "emp", Name: "Employee"})
	d := NewDirectoryCache(repo, time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		u, err := d.GetUser(ctx, "emp")
		require.NoError(t, err)
		assert.Equal(t, "Employee", u.Name)
	}
	assert.Equal(t, 1, repo.gets)
}

func TestDirectoryCache_MissIsNotCached(t *testing.T) {
	repo := newCountingRepo()
	d := NewDirectoryCache(repo, time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := d.GetUser(ctx, "ghost")
	assert.True(t, errors.Is(err, port.ErrUserNotFound))

	repo.users["ghost"] = &entity.User{ID: "ghost"}
	u, err := d.GetUser(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", u.ID)
	assert.Equal(t, 2, repo.gets)
}

func TestDirectoryCache_UpsertInvalidates(t *testing.T) {
	repo := newCountingRepo(&entity.User{ID: "emp", Name: "Old"})
	d := NewDirectoryCache(repo, time.Hour, zap.NewNop())
	ctx := context.Background()

	_, err := d.GetUser(ctx, "emp")
	require.NoError(t, err)

	require.NoError(t, d.Upsert(ctx, &entity.User{ID: "emp", Name: "New"}))
	u, err := d.GetUser(ctx, "emp")
	require.NoError(t, err)
	assert.Equal(t, "New", u.Name)
	assert.Equal(t, 2, repo.gets)
}

func TestDirectoryCache_ExpiresAfterTTL(t *testing.T) {
	repo := newCountingRepo(&entity.User{ID: "emp"})
	d := NewDirectoryCache(repo, 20*time.Millisecond, zap.NewNop())
	ctx := context.Background()

	_, err := d.GetUser(ctx, "emp")
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	_, err = d.GetUser(ctx, "emp")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.gets)
}

func TestDirectoryCache_DefaultTravelApprover(t *testing.T) {
	approvers := []*entity.User{
		{ID: "a-boss", Groups: []string{entity.GroupTravelApprover}},
		{ID: "b-boss", Groups: []string{entity.GroupTravelApprover}},
	}
	ctx := context.Background()

	t.Run("first group member", func(t *testing.T) {
		repo := newCountingRepo(approvers...)
		d := NewDirectoryCache(repo, time.Minute, zap.NewNop())

		u, err := d.DefaultTravelApprover(ctx)
		require.NoError(t, err)
		assert.Equal(t, "a-boss", u.ID)

		_, err = d.DefaultTravelApprover(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, repo.groupLists)
	})

	t.Run("pinned approver", func(t *testing.T) {
		repo := newCountingRepo(approvers...)
		d := NewDirectoryCache(repo, time.Minute, zap.NewNop(), WithDefaultApprover("b-boss"))

		u, err := d.DefaultTravelApprover(ctx)
		require.NoError(t, err)
		assert.Equal(t, "b-boss", u.ID)
		assert.Equal(t, 0, repo.groupLists)
	})

	t.Run("none configured", func(t *testing.T) {
		repo := newCountingRepo(&entity.User{ID: "emp"})
		d := NewDirectoryCache(repo, time.Minute, zap.NewNop())

		_, err := d.DefaultTravelApprover(ctx)
		assert.True(t, errors.Is(err, port.ErrUserNotFound))
	})

	t.Run("invalidate drops approver", func(t *testing.T) {
		repo := newCountingRepo(approvers...)
		d := NewDirectoryCache(repo, time.Minute, zap.NewNop())

		_, err := d.DefaultTravelApprover(ctx)
		require.NoError(t, err)
		d.Invalidate("a-boss")
		_, err = d.DefaultTravelApprover(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, repo.groupLists)

		d.Invalidate()
		assert.Equal(t, 0, d.ItemCount())
	})
}
