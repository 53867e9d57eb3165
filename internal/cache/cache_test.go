package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"mintoons/internal/models"
)

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var c CompetitionCache = Noop{}

	require.NoError(t, c.SetCurrent(ctx, &models.Competition{ID: 1}, 0))
	got, _, err := c.GetCurrent(ctx)
	require.NoError(t, err)
	require.Nil(t, got)
	require.NoError(t, c.Invalidate(ctx))
}

type RedisCacheSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcredis.RedisContainer
	client    *redis.Client
	cache     *RedisCache
}

func (s *RedisCacheSuite) SetupSuite() {
	s.ctx = context.Background()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		testcontainers.SkipIfProviderIsNotHealthy(s.T())
		container, err := tcredis.Run(s.ctx,
			"docker.io/redis:7-alpine",
			testcontainers.WithWaitStrategy(
				wait.ForLog("* Ready to accept connections").WithStartupTimeout(time.Minute),
			),
		)
		require.NoError(s.T(), err, "Failed to start redis container")
		s.container = container

		uri, err := container.ConnectionString(s.ctx)
		require.NoError(s.T(), err)
		opts, err := redis.ParseURL(uri)
		require.NoError(s.T(), err)
		addr = opts.Addr
	}

	client, err := Connect(s.ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(s.T(), err)
	s.client = client
	s.cache = NewRedisCache(client, time.Minute, nil)
}

func (s *RedisCacheSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.cache.Invalidate(s.ctx))
}

func (s *RedisCacheSuite) TestMissThenHit() {
	got, generation, err := s.cache.GetCurrent(s.ctx)
	s.Require().NoError(err)
	s.Nil(got)

	comp := &models.Competition{
		ID:       3,
		Month:    "2026-10",
		Title:    "Autumn Tales",
		Phase:    models.PhaseSubmission,
		IsActive: true,
	}
	comp.Winners = []models.Winner{{Rank: 1, UserID: 9, PenName: "BraveOtter12", Title: "Leaves"}}
	s.Require().NoError(s.cache.SetCurrent(s.ctx, comp, generation))

	got, _, err = s.cache.GetCurrent(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(comp.Month, got.Month)
	s.Equal(comp.Phase, got.Phase)
	s.Len(got.Winners, 1)

	ttl, err := s.client.TTL(s.ctx, currentCompetitionKey).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisCacheSuite) TestInvalidate() {
	_, generation, err := s.cache.GetCurrent(s.ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.cache.SetCurrent(s.ctx, &models.Competition{ID: 1, Month: "2026-09"}, generation))
	s.Require().NoError(s.cache.Invalidate(s.ctx))

	got, next, err := s.cache.GetCurrent(s.ctx)
	s.Require().NoError(err)
	s.Nil(got)
	s.Greater(next, generation)
}

func (s *RedisCacheSuite) TestWriteAfterInvalidateIsDropped() {
	_, generation, err := s.cache.GetCurrent(s.ctx)
	s.Require().NoError(err)

	// another process advances the competition between our read and write
	s.Require().NoError(s.cache.Invalidate(s.ctx))
	s.Require().NoError(s.cache.SetCurrent(s.ctx, &models.Competition{ID: 1, Phase: models.PhaseSubmission}, generation))

	got, current, err := s.cache.GetCurrent(s.ctx)
	s.Require().NoError(err)
	s.Nil(got)

	s.Require().NoError(s.cache.SetCurrent(s.ctx, &models.Competition{ID: 1, Phase: models.PhaseJudging}, current))
	got, _, err = s.cache.GetCurrent(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(models.PhaseJudging, got.Phase)
}

func (s *RedisCacheSuite) TestGarbageIsAMiss() {
	s.Require().NoError(s.client.Set(s.ctx, currentCompetitionKey, "not json", time.Minute).Err())

	got, _, err := s.cache.GetCurrent(s.ctx)
	s.Require().NoError(err)
	s.Nil(got)

	exists, err := s.client.Exists(s.ctx, currentCompetitionKey).Result()
	s.Require().NoError(err)
	s.Zero(exists)
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping redis integration tests in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}
