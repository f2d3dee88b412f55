//go:build integration

package connections_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"cardfeed/internal/connections"
	"cardfeed/pkg/testutil/containers"
)

type RedisTrackerSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	tracker *connections.RedisTracker
	ctx     context.Context
}

func TestRedisTrackerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisTrackerSuite))
}

func (s *RedisTrackerSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.tracker = connections.NewRedisTracker(s.redis.Client)
}

func (s *RedisTrackerSuite) TearDownSuite() {
	_ = s.redis.Client.Close()
	_ = s.redis.Container.Terminate(s.ctx)
}

func (s *RedisTrackerSuite) SetupTest() {
	s.Require().NoError(s.redis.Client.FlushAll(s.ctx).Err())
}

func (s *RedisTrackerSuite) TestConnectedAndList() {
	s.Require().NoError(s.tracker.Connected(s.ctx, connections.Connection{
		ClientID: "client-b", Login: "operator2",
	}))
	s.Require().NoError(s.tracker.Connected(s.ctx, connections.Connection{
		ClientID: "client-a", Login: "operator1", Groups: []string{"dispatchers"},
	}))

	list, err := s.tracker.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("client-a", list[0].ClientID)
	s.Equal([]string{"dispatchers"}, list[0].Groups)
	s.Equal("client-b", list[1].ClientID)
}

func (s *RedisTrackerSuite) TestReconnectReplaces() {
	s.Require().NoError(s.tracker.Connected(s.ctx, connections.Connection{
		ClientID: "client-a", Login: "operator1",
	}))
	s.Require().NoError(s.tracker.Connected(s.ctx, connections.Connection{
		ClientID: "client-a", Login: "operator2",
	}))

	list, err := s.tracker.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("operator2", list[0].Login)
}

func (s *RedisTrackerSuite) TestDisconnected() {
	s.Require().NoError(s.tracker.Connected(s.ctx, connections.Connection{
		ClientID: "client-a", Login: "operator1",
	}))
	s.Require().NoError(s.tracker.Disconnected(s.ctx, "client-a"))
	s.Require().NoError(s.tracker.Disconnected(s.ctx, "client-a"))

	list, err := s.tracker.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *RedisTrackerSuite) TestRefreshUnknownClient() {
	s.Require().NoError(s.tracker.Refresh(s.ctx, "client-a"))
}
