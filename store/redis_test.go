package store

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	data   map[string]string
	setErr error
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisStore_PrefixesKeys(t *testing.T) {
	fake := &fakeRedis{data: map[string]string{}}
	s := &RedisStore{client: fake}
	ctx := context.Background()

	_, err := s.Load(ctx, SlotCart)
	assert.ErrorIs(t, err, ErrSlotNotFound)

	require.NoError(t, s.Save(ctx, SlotCart, []byte(`[{"id":3,"quantity":1}]`)))
	assert.Contains(t, fake.data, "storefront:cart")

	got, err := s.Load(ctx, SlotCart)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":3,"quantity":1}]`, string(got))
}

func TestRedisStore_SaveError(t *testing.T) {
	s := &RedisStore{client: &fakeRedis{data: map[string]string{}, setErr: errors.New("READONLY")}}
	err := s.Save(context.Background(), SlotWishlist, []byte(`[]`))
	assert.Error(t, err)
}

func TestRedisStore_Miniredis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	ctx := context.Background()
	s, err := NewRedisStore(ctx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer s.Close()

	slot := SlotName("shop", SlotWishlist)
	_, err = s.Load(ctx, slot)
	assert.ErrorIs(t, err, ErrSlotNotFound)

	require.NoError(t, s.Save(ctx, slot, []byte(`[{"id":9}]`)))
	raw, err := mr.Get("storefront:shop.wishlist")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":9}]`, raw)

	got, err := s.Load(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":9}]`, string(got))
}

func TestRedisStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis test in short mode")
	}
	conn, err := net.DialTimeout("tcp", "localhost:6379", time.Second)
	if err != nil {
		t.Skip("Redis not available at localhost:6379")
	}
	conn.Close()

	s, err := NewRedisStore(context.Background(), "redis://localhost:6379/0")
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer s.Close()

	slot := SlotName("test-"+time.Now().Format("20060102150405.000"), SlotCart)
	require.NoError(t, s.Save(context.Background(), slot, []byte(`[]`)))
	got, err := s.Load(context.Background(), slot)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
}
