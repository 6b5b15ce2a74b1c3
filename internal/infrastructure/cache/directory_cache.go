package cache

import (
	"context"
	"fmt"
	"time"

	c "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/garyjia/trip-approval/internal/application/port"
	"github.com/garyjia/trip-approval/internal/domain/entity"
)

const approverKey = "approver:default"

// DirectoryCache is a UserDirectory that caches lookups in front of the user store.
// Entries live for the configured TTL or until Invalidate.
type DirectoryCache struct {
	users             port.UserRepository
	cache             *c.Cache
	defaultApproverID string
	logger            *zap.Logger
}

// Option configures the directory cache
type Option func(*DirectoryCache)

// WithDefaultApprover pins the travel approver instead of taking the first group member
func WithDefaultApprover(userID string) Option {
	return func(d *DirectoryCache) {
		d.defaultApproverID = userID
	}
}

// NewDirectoryCache creates a cache over users. A non-positive ttl disables expiry.
func NewDirectoryCache(users port.UserRepository, ttl time.Duration, logger *zap.Logger, opts ...Option) *DirectoryCache {
	if ttl <= 0 {
		ttl = c.NoExpiration
	}
	d := &DirectoryCache{
		users:  users,
		cache:  c.New(ttl, 10*time.Minute),
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// GetUser returns the user with id. Misses are not cached.
func (d *DirectoryCache) GetUser(ctx context.Context, id string) (*entity.User, error) {
	if v, found := d.cache.Get(userKey(id)); found {
		return v.(*entity.User), nil
	}

	user, err := d.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	d.cache.SetDefault(userKey(id), user)
	return user, nil
}

// DefaultTravelApprover returns the pinned approver, or the first member of the
// travel approver group ordered by id
func (d *DirectoryCache) DefaultTravelApprover(ctx context.Context) (*entity.User, error) {
	if v, found := d.cache.Get(approverKey); found {
		return v.(*entity.User), nil
	}

	var approver *entity.User
	if d.defaultApproverID != "" {
		user, err := d.GetUser(ctx, d.defaultApproverID)
		if err != nil {
			return nil, err
		}
		approver = user
	} else {
		members, err := d.users.ListByGroup(ctx, entity.GroupTravelApprover)
		if err != nil {
			return nil, fmt.Errorf("failed to list travel approvers: %w", err)
		}
		if len(members) == 0 {
			return nil, fmt.Errorf("%w: no travel approver configured", port.ErrUserNotFound)
		}
		approver = members[0]
	}

	d.cache.SetDefault(approverKey, approver)
	return approver, nil
}

// Upsert writes the user through to the store and drops the cached copies
func (d *DirectoryCache) Upsert(ctx context.Context, user *entity.User) error {
	if err := d.users.Upsert(ctx, user); err != nil {
		return err
	}
	d.Invalidate(user.ID)
	return nil
}

// Invalidate drops cached entries for the given ids; no ids flushes everything.
// The default approver entry is always dropped since group membership may have changed.
func (d *DirectoryCache) Invalidate(ids ...string) {
	if len(ids) == 0 {
		d.cache.Flush()
		d.logger.Debug("Directory cache flushed")
		return
	}
	for _, id := range ids {
		d.cache.Delete(userKey(id))
	}
	d.cache.Delete(approverKey)
}

// ItemCount returns the number of cached entries, including expired ones not yet cleaned up
func (d *DirectoryCache) ItemCount() int {
	return d.cache.ItemCount()
}

func userKey(id string) string {
	return "user:" + id
}

var _ port.UserDirectory = (*DirectoryCache)(nil)
