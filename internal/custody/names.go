package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/evmtrack/evmtrack/internal/datastore/repository"
)

// Names resolves directory ids to display names through a TTL cache.
// Unknown or failing lookups render as "#<id>" so reports never fail on them.
type Names struct {
	dir   repository.DirectoryRepository
	cache *cache.Cache
}

// NewNames creates a name cache with entries expiring after ttl.
func NewNames(dir repository.DirectoryRepository, ttl time.Duration) *Names {
	return &Names{dir: dir, cache: cache.New(ttl, 2*ttl)}
}

func (n *Names) lookup(key string, id uint, load func() (string, error)) string {
	if v, ok := n.cache.Get(key); ok {
		return v.(string)
	}
	name, err := load()
	if err != nil {
		return fmt.Sprintf("#%d", id)
	}
	n.cache.SetDefault(key, name)
	return name
}

// District returns the district name for id.
func (n *Names) District(ctx context.Context, id *uint) string {
	if id == nil {
		return ""
	}
	return n.lookup(fmt.Sprintf("district:%d", *id), *id, func() (string, error) {
		d, err := n.dir.GetDistrict(ctx, *id)
		if err != nil {
			return "", err
		}
		return d.Name, nil
	})
}

// LocalBody returns the local body name for id.
func (n *Names) LocalBody(ctx context.Context, id *uint) string {
	if id == nil {
		return ""
	}
	return n.lookup(fmt.Sprintf("localbody:%d", *id), *id, func() (string, error) {
		lb, err := n.dir.GetLocalBody(ctx, *id)
		if err != nil {
			return "", err
		}
		return lb.Name, nil
	})
}

// Warehouse returns the warehouse name for id.
func (n *Names) Warehouse(ctx context.Context, id *uint) string {
	if id == nil {
		return ""
	}
	return n.lookup(fmt.Sprintf("warehouse:%d", *id), *id, func() (string, error) {
		w, err := n.dir.GetWarehouse(ctx, *id)
		if err != nil {
			return "", err
		}
		return w.Name, nil
	})
}

// User returns the display name of a user, falling back to the username.
func (n *Names) User(ctx context.Context, id uint) string {
	return n.lookup(fmt.Sprintf("user:%d", id), id, func() (string, error) {
		u, err := n.dir.GetUser(ctx, id)
		if err != nil {
			return "", err
		}
		if u.DisplayName != "" {
			return u.DisplayName, nil
		}
		return u.Username, nil
	})
}

// Flush drops every cached entry.
func (n *Names) Flush() {
	n.cache.Flush()
}
