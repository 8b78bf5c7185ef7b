package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

var ctx = context.Background()

// document keys and update channels share the same suffix so a single
// key string addresses both
const (
	docKeyPrefix     = "progress:"
	docChannelPrefix = "progress.updates:"
)

type progressDoc struct {
	Done bool `json:"done"`
}

// RedisClient backs both the token blacklist (KeyValueDB) and the remote
// progress store (DocumentStore)
type RedisClient struct {
	conn *redis.Client
}

var _ KeyValueDB = (*RedisClient)(nil)
var _ DocumentStore = (*RedisClient)(nil)

// NewRedisClient create a redis client
func NewRedisClient(host string, port int, password string) *RedisClient {
	conn := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
	})
	return &RedisClient{
		conn: conn,
	}
}

// SetEX implement KeyValueDB
func (rdb *RedisClient) SetEX(key string, value string, expiration time.Duration) error {
	return rdb.conn.Set(ctx, key, value, expiration).Err()
}

// Get implement KeyValueDB
func (rdb *RedisClient) Get(key string) (string, error) {
	cmd := rdb.conn.Get(ctx, key)
	return cmd.Result()
}

// Exists implement KeyValueDB
func (rdb *RedisClient) Exists(key string) (bool, error) {
	cmd := rdb.conn.Exists(ctx, key)
	if ok, err := cmd.Result(); err == nil {
		return ok == 1, nil
	} else {
		return false, err
	}
}

// Ping implement KeyValueDB
func (rdb *RedisClient) Ping() error {
	return rdb.conn.Ping(ctx).Err()
}

// GetDocument implement DocumentStore, a missing key is not an error
func (rdb *RedisClient) GetDocument(ctx context.Context, key string) (DocumentSnapshot, error) {
	raw, err := rdb.conn.Get(ctx, docKeyPrefix+key).Result()
	if err == redis.Nil {
		return DocumentSnapshot{}, nil
	}
	if err != nil {
		return DocumentSnapshot{}, err
	}
	var doc progressDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return DocumentSnapshot{}, err
	}
	return DocumentSnapshot{Exists: true, Done: doc.Done}, nil
}

// SetDocument implement DocumentStore, the write is also published so
// live subscribers see it
func (rdb *RedisClient) SetDocument(ctx context.Context, key string, done bool) error {
	raw, err := json.Marshal(progressDoc{Done: done})
	if err != nil {
		return err
	}
	if err := rdb.conn.Set(ctx, docKeyPrefix+key, raw, 0).Err(); err != nil {
		return err
	}
	return rdb.conn.Publish(ctx, docChannelPrefix+key, raw).Err()
}

// Subscribe implement DocumentStore. The callback first receives the
// current snapshot, then one call per published update. The callback runs
// on the subscription goroutine.
func (rdb *RedisClient) Subscribe(ctx context.Context, key string, fn func(DocumentSnapshot)) (Unsubscribe, error) {
	pubsub := rdb.conn.Subscribe(ctx, docChannelPrefix+key)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	initial, err := rdb.GetDocument(ctx, key)
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		fn(initial)
		updates := pubsub.Channel()
		for {
			select {
			case msg, ok := <-updates:
				if !ok {
					return
				}
				var doc progressDoc
				if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
					continue
				}
				fn(DocumentSnapshot{Exists: true, Done: doc.Done})
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}, nil
}
