// README: human-readable trip reference codes backed by a daily redis counter.
package trip

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const refSeqTTL = 48 * time.Hour

// RefCodeSource issues codes like TRP-20260901-0042. The counter resets per
// day by keying on the date; stale keys expire on their own.
type RefCodeSource struct {
	rdb *redis.Client
	log zerolog.Logger
}

func NewRefCodeSource(rdb *redis.Client, log zerolog.Logger) *RefCodeSource {
	return &RefCodeSource{rdb: rdb, log: log}
}

func (s *RefCodeSource) Next(ctx context.Context, now time.Time) string {
	day := now.UTC().Format("20060102")
	if s.rdb != nil {
		key := "trip:seq:" + day
		n, err := s.rdb.Incr(ctx, key).Result()
		if err == nil {
			if n == 1 {
				s.rdb.Expire(ctx, key, refSeqTTL)
			}
			return fmt.Sprintf("TRP-%s-%04d", day, n)
		}
		s.log.Warn().Err(err).Msg("refcode: redis incr failed, falling back to random suffix")
	}
	return fmt.Sprintf("TRP-%s-%s", day, randomSuffix())
}

func randomSuffix() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(b[:])
}
