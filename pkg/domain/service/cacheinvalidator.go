package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
)

// Cache keys of the derived views read paths may hold. Keys ending in "*" are prefixes.
func GuestListKey(eventID uuid.UUID) string      { return "guests:" + eventID.String() + ":*" }
func EventKey(eventID uuid.UUID) string          { return "event:" + eventID.String() }
func EventStatsKey(eventID uuid.UUID) string     { return "event:" + eventID.String() + ":stats" }
func TableOccupancyKey(eventID uuid.UUID) string { return "tables:stats:" + eventID.String() }

// CacheInvalidator expires derived views after state changes. It is best effort: failures
// are logged and never returned. A nil invalidator does nothing.
type CacheInvalidator struct {
	cache  model.Cache
	logger logrus.FieldLogger
}

func NewCacheInvalidator(cache model.Cache, logger logrus.FieldLogger) *CacheInvalidator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CacheInvalidator{cache: cache, logger: logger}
}

func (c *CacheInvalidator) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.cache == nil {
		return
	}
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok || key == "" {
			continue
		}
		seen[key] = struct{}{}

		var err error
		if prefix, ok := strings.CutSuffix(key, "*"); ok {
			err = c.cache.DeleteByPattern(ctx, prefix)
		} else {
			err = c.cache.Delete(ctx, key)
		}
		if err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("cache invalidation failed")
		}
	}
}
