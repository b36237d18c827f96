package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"portfolio-backend/internal/database"
	"portfolio-backend/internal/models"
)

func exerciseStore(t *testing.T, store MessageStore) {
	t.Helper()
	req := require.New(t)
	ctx := context.Background()

	before, err := store.List(ctx)
	req.NoError(err)

	user, err := store.Create(ctx, "ما هي البرمجة؟", models.SenderUser)
	req.NoError(err)
	ai, err := store.Create(ctx, "البرمجة هي فن حل المشكلات.", models.SenderAI)
	req.NoError(err)

	after, err := store.List(ctx)
	req.NoError(err)
	req.Len(after, len(before)+2)
	req.Equal(user.ID, after[len(after)-2].ID)
	req.Equal(ai.ID, after[len(after)-1].ID)
	req.Equal(models.SenderAI, after[len(after)-1].Sender)

	recent, err := store.Recent(ctx, 2)
	req.NoError(err)
	req.Len(recent, 2)
	req.Equal(user.ID, recent[0].ID)
	req.Equal(ai.ID, recent[1].ID)
}

func Test_Postgres_Store(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	req.NoError(err)
	defer pool.Close()

	req.NoError(database.RunMigrations(ctx, pool, database.EmbeddedMigrations()))

	exerciseStore(t, NewPostgresMessageRepo(pool))
}

func Test_Redis_Store(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	req := require.New(t)
	opt, err := redis.ParseURL(url)
	req.NoError(err)
	client := redis.NewClient(opt)
	defer client.Close()

	key := "test:chat:messages:" + t.Name()
	defer client.Del(context.Background(), key)

	exerciseStore(t, NewRedisMessageRepo(client, key))
}

func newMiniredisRepo(t *testing.T) (*miniredis.Miniredis, *RedisMessageRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisMessageRepo(client, "")
}

func Test_Redis_Store_Miniredis(t *testing.T) {
	_, repo := newMiniredisRepo(t)
	exerciseStore(t, repo)
}

func Test_Redis_Store_Keeps_Order_Under_Concurrency(t *testing.T) {
	req := require.New(t)
	mr, repo := newMiniredisRepo(t)
	ctx := context.Background()

	const writers = 20
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(ctx, fmt.Sprintf("msg-%d", i), models.SenderUser)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	msgs, err := repo.List(ctx)
	req.NoError(err)
	req.Len(msgs, writers)

	raw, err := mr.List(DefaultRedisMessagesKey)
	req.NoError(err)
	req.Len(raw, writers)

	recent, err := repo.Recent(ctx, 3)
	req.NoError(err)
	req.Equal(msgs[len(msgs)-3:], recent)
}

func Test_Redis_Store_Rejects_Corrupt_Record(t *testing.T) {
	req := require.New(t)
	mr, repo := newMiniredisRepo(t)

	_, err := mr.Push(DefaultRedisMessagesKey, `{"content":"x","sender":"bot"}`)
	req.NoError(err)

	_, err = repo.List(context.Background())
	var se *StorageError
	req.ErrorAs(err, &se)
	req.Equal("list", se.Op)
}

func Test_Redis_Store_Wraps_Failures(t *testing.T) {
	req := require.New(t)
	// Nothing listens on port 1, so every command fails fast.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	repo := NewRedisMessageRepo(client, "")
	_, err := repo.Create(context.Background(), "hello", models.SenderUser)
	req.Error(err)

	var se *StorageError
	req.True(errors.As(err, &se))
	req.Equal("create", se.Op)
}
