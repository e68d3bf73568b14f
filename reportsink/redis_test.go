package reportsink

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

const testStream = "lazyload:reports"

func setupRedisSink(t *testing.T, maxLen int64) (*RedisSink, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	sink, err := ConnectRedis(&config.RedisSinkConfig{
		Address: mr.Addr(),
		Stream:  testStream,
		MaxLen:  maxLen,
	}, testService, logger.New("disabled", false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	sink.now = func() time.Time { return flushedAt }
	return sink, mr
}

func readStream(t *testing.T, mr *miniredis.Miniredis) []redis.XMessage {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	msgs, err := rdb.XRange(context.Background(), testStream, "-", "+").Result()
	require.NoError(t, err)
	return msgs
}

func TestRedisSinkPublish(t *testing.T) {
	sink, mr := setupRedisSink(t, 0)

	require.NoError(t, sink.Publish(context.Background(), testReport()))

	msgs := readStream(t, mr)
	require.Len(t, msgs, 1)
	assert.Equal(t, testService, msgs[0].Values[FieldService])

	raw, ok := msgs[0].Values[FieldReport].(string)
	require.True(t, ok)

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, msgs[0].Values[FieldID], doc.ID)
	assert.Equal(t, 4, doc.LazyLoads)
	assert.Equal(t, int64(62), doc.TotalMs)
	assert.True(t, doc.FlushedAt.Equal(flushedAt))
}

func TestRedisSinkTrimsStream(t *testing.T) {
	sink, mr := setupRedisSink(t, 2)

	for range 3 {
		require.NoError(t, sink.Publish(context.Background(), testReport()))
	}

	assert.Len(t, readStream(t, mr), 2)
}

func TestRedisSinkPublishAfterServerGone(t *testing.T) {
	sink, mr := setupRedisSink(t, 0)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := sink.Publish(ctx, testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), testStream)
}

func TestConnectRedisFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := ConnectRedis(&config.RedisSinkConfig{Address: addr, Stream: testStream},
		testService, logger.New("disabled", false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping Redis")
}

func TestRedisSinkCloseWithoutClient(t *testing.T) {
	assert.NoError(t, NewRedisSink(nil, testStream, 0, testService).Close())
}
