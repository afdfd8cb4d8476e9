package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/prm"
)

const stateTTL = 24 * time.Hour

// StateCache keeps the last recorded state per arm so it can still be served
// after a restart, before the arm has published again.
type StateCache struct{ rdb *redis.Client }

func NewStateCache(rdb *redis.Client) *StateCache { return &StateCache{rdb: rdb} }

func key(arm string) string { return "arm:state_joint_desired:" + arm }

func (c *StateCache) Set(ctx context.Context, arm string, s prm.StateJoint) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(arm), b, stateTTL).Err()
}

// Get returns ok=false when nothing is cached for arm.
func (c *StateCache) Get(ctx context.Context, arm string) (prm.StateJoint, bool, error) {
	b, err := c.rdb.Get(ctx, key(arm)).Bytes()
	if errors.Is(err, redis.Nil) {
		return prm.StateJoint{}, false, nil
	}
	if err != nil {
		return prm.StateJoint{}, false, err
	}
	var s prm.StateJoint
	if err := json.Unmarshal(b, &s); err != nil {
		return prm.StateJoint{}, false, err
	}
	return s, true, nil
}
