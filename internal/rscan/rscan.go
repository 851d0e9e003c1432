// Package rscan deletes Redis keys by SCAN pattern on standalone,
// sentinel and cluster clients.
package rscan

import (
	"context"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultCount is the SCAN COUNT hint used when none is configured.
const DefaultCount = 500

// Delete unlinks every key matching pattern and returns how many were
// removed. Cluster clients are scanned master by master.
func Delete(ctx context.Context, rdb goredis.UniversalClient, pattern string, count int64) (int, error) {
	if count <= 0 {
		count = DefaultCount
	}
	if cc, ok := rdb.(*goredis.ClusterClient); ok {
		var total atomic.Int64
		err := cc.ForEachMaster(ctx, func(ctx context.Context, c *goredis.Client) error {
			n, err := deleteOn(ctx, c, pattern, count)
			total.Add(int64(n))
			return err
		})
		return int(total.Load()), err
	}
	return deleteOn(ctx, rdb, pattern, count)
}

func deleteOn(ctx context.Context, c goredis.Cmdable, pattern string, count int64) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := c.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return total, err
		}
		if len(keys) > 0 {
			// single-key UNLINKs in one pipeline: no CROSSSLOT on cluster nodes
			cmds, err := c.Pipelined(ctx, func(p goredis.Pipeliner) error {
				for _, k := range keys {
					p.Unlink(ctx, k)
				}
				return nil
			})
			if err != nil {
				return total, err
			}
			for _, cmd := range cmds {
				if ic, ok := cmd.(*goredis.IntCmd); ok {
					total += int(ic.Val())
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}
