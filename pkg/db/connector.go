// Initialization of Redis client to be used internally in Dropzone.

package db

import (
	"Dropzone/pkg/log"
	"context"

	"github.com/go-redis/redis/v8"
)

// RedisDB represents a redis client connection to be used internally in Dropzone.
type RedisDB struct {
	client *redis.Client
}

// Options needed to reach the redis-server.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client returns the redis client wrapped by RedisDB.
func (db *RedisDB) Client() *redis.Client {
	return db.client
}

// Returns a new Redis DB connection wrapped up by RedisDB struct.
func NewDbConnection(opts Options) *RedisDB {
	// Initializing a connection to Redis-server
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisDB{client: client}
}

// Wraps an already built redis client, used by tests running against miniredis.
func NewFromClient(client *redis.Client) *RedisDB {
	return &RedisDB{client: client}
}

// Helper to check connection status of redis client to redis-server.
// Equivalent to a PING request on redis-server, returns PONG on success.
func (db *RedisDB) CheckDbConnection(ctx context.Context, logger log.Logger) error {
	logger.WithCtx(ctx).Info().Msg("Checking DB Connection . . .")
	// Pinging the Redis-server to check connection status
	cnterr := db.Client().Ping(ctx).Err()
	if cnterr != nil {
		// Most likely, DB connection failure
		logger.WithCtx(ctx).Error().Err(cnterr).Msg("Redis client couldn't PING the redis-server.")
		return cnterr
	}
	// Connection successful
	logger.WithCtx(ctx).Info().Msg("Connection to DB Successful")
	return nil
}

// Helper to close the RedisDB client, should be called before closing the server.
func (db *RedisDB) CloseDbConnection(ctx context.Context) error {
	return db.Client().Close()
}
