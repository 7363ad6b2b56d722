// README: Ref code tests; fallback path runs without redis.
package trip

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRefCodeFallbackWithoutRedis(t *testing.T) {
	src := NewRefCodeSource(nil, zerolog.Nop())
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	code := src.Next(context.Background(), now)
	require.Regexp(t, regexp.MustCompile(`^TRP-20260901-[0-9a-f]{8}$`), code)

	// The random suffix makes collisions on the same instant unlikely.
	other := src.Next(context.Background(), now)
	require.NotEqual(t, code, other)
}
