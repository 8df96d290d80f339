//go:build test

package testutil

import (
	"context"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

// RedisTestSuite provides a shared miniredis instance for tests.
// Embed this in a test suite to get automatic Redis setup/teardown
// with per-test isolation.
//
// Usage:
//
//	type MyTestSuite struct {
//	    testutil.RedisTestSuite
//	}
//
//	func (s *MyTestSuite) TestSomething() {
//	    err := s.RedisClient.Set(s.Ctx, "key", "value", 0).Err()
//	    s.Require().NoError(err)
//	}
//
//	func TestMyTestSuite(t *testing.T) {
//	    suite.Run(t, new(MyTestSuite))
//	}
type RedisTestSuite struct {
	suite.Suite

	// MiniRedis is the embedded miniredis instance; use it to inspect
	// internal state or simulate server-side behavior.
	MiniRedis *miniredis.Miniredis

	// RedisClient is a go-redis client connected to miniredis.
	RedisClient *redis.Client

	// Ctx is a background context for Redis operations.
	Ctx context.Context
}

// SetupSuite runs once before all tests; one shared miniredis keeps
// suite startup cheap.
func (s *RedisTestSuite) SetupSuite() {
	mr, err := miniredis.Run()
	s.Require().NoError(err, "failed to create miniredis")
	s.MiniRedis = mr

	s.Ctx = context.Background()
	s.RedisClient = redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// SetupTest flushes all data before each test for isolation.
func (s *RedisTestSuite) SetupTest() {
	s.MiniRedis.FlushAll()
}

// TearDownSuite closes the shared instance.
func (s *RedisTestSuite) TearDownSuite() {
	if s.RedisClient != nil {
		_ = s.RedisClient.Close()
	}
	if s.MiniRedis != nil {
		s.MiniRedis.Close()
	}
}

// RequireKeyExists asserts that a key exists in Redis.
func (s *RedisTestSuite) RequireKeyExists(key string) {
	exists, err := s.RedisClient.Exists(s.Ctx, key).Result()
	s.Require().NoError(err, "failed to check key existence")
	s.Require().Equal(int64(1), exists, "key %q should exist", key)
}

// RequireKeyNotExists asserts that a key does NOT exist in Redis.
func (s *RedisTestSuite) RequireKeyNotExists(key string) {
	exists, err := s.RedisClient.Exists(s.Ctx, key).Result()
	s.Require().NoError(err, "failed to check key existence")
	s.Require().Equal(int64(0), exists, "key %q should not exist", key)
}
