package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/stratcache/codec"
)

func setEnv(t *testing.T, redisConf string) {
	t.Helper()
	t.Setenv("STRATCACHE_NAMESPACE", "cli")
	t.Setenv("STRATCACHE_REDIS_CONFIGURATION", redisConf)
	t.Setenv("STRATCACHE_REDIS_ENABLED", "")
	t.Setenv("STRATCACHE_REDIS_HASH_CONFIGURATION", "")
	t.Setenv("STRATCACHE_REDIS_HASH_ENABLED", "")
	t.Setenv("STRATCACHE_MEMCACHED_CONFIGURATION", "")
	t.Setenv("STRATCACHE_MEMCACHED_ENABLED", "")
	t.Setenv("LOG_LEVEL", "error")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), append([]string{"-env", "testdata/none.env"}, args...), &out)
	return strings.TrimSpace(out.String()), err
}

func TestRunAgainstRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, mr.Addr())

	out, err := runCLI(t, "status")
	require.NoError(t, err)
	assert.Equal(t, "strategy=KeyValueStore namespace=cli", out)

	_, err = runCLI(t, "set", "-ttl", "1m", "greeting", "hello")
	require.NoError(t, err)
	v, err := mr.Get("cli:greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
	assert.Greater(t, mr.TTL("cli:greeting").Seconds(), 0.0)

	out, err = runCLI(t, "get", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	out, err = runCLI(t, "rm", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	_, err = runCLI(t, "get", "greeting")
	assert.ErrorContains(t, err, "not found")
}

func TestRunClear(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, mr.Addr())
	require.NoError(t, mr.Set("cli:a", "1"))
	require.NoError(t, mr.Set("other:a", "1"))

	_, err := runCLI(t, "clear")
	require.NoError(t, err)
	assert.False(t, mr.Exists("cli:a"))
	assert.True(t, mr.Exists("other:a"))
}

func TestRunFallsBackToInMemory(t *testing.T) {
	setEnv(t, "")
	out, err := runCLI(t, "status")
	require.NoError(t, err)
	assert.Equal(t, "strategy=InMemory namespace=cli", out)
}

func TestRunUsage(t *testing.T) {
	setEnv(t, "")
	for _, args := range [][]string{{}, {"get"}, {"set", "k"}, {"frobnicate", "k"}} {
		_, err := runCLI(t, args...)
		assert.True(t, errors.Is(err, errUsage), "args %v: %v", args, err)
	}
}

func TestRunGetDecodesTypedValues(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, mr.Addr())

	type session struct {
		User string `json:"user" msgpack:"user" cbor:"user"`
	}
	typed := map[string]codec.Codec[session]{
		codec.FormatJSON:    codec.JSON[session]{},
		codec.FormatMsgpack: codec.Msgpack[session]{},
		codec.FormatCBOR:    codec.MustCBOR[session](false),
	}
	for format, c := range typed {
		t.Run(format, func(t *testing.T) {
			b, err := c.Encode(session{User: "alice"})
			require.NoError(t, err)
			require.NoError(t, mr.Set("cli:session", string(b)))

			out, err := runCLI(t, "get", "-decode", format, "session")
			require.NoError(t, err)
			assert.JSONEq(t, `{"user":"alice"}`, out)
		})
	}

	_, err := runCLI(t, "get", "-decode", "yaml", "session")
	assert.True(t, errors.Is(err, errUsage), "unknown format: %v", err)

	require.NoError(t, mr.Set("cli:garbage", "\xc1"))
	_, err = runCLI(t, "get", "-decode", codec.FormatMsgpack, "garbage")
	assert.ErrorContains(t, err, "decode msgpack")
}
