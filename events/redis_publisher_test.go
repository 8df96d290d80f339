//go:build test

package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/testutil"
)

type RedisPublisherTestSuite struct {
	testutil.RedisTestSuite
}

func TestRedisPublisherTestSuite(t *testing.T) {
	suite.Run(t, new(RedisPublisherTestSuite))
}

func (s *RedisPublisherTestSuite) newPublisher(level CompressionLevel) (*RedisPublisher, *Bus) {
	pub, err := NewRedisPublisherWithClient(testutil.NewTestLogger(), s.RedisClient, level)
	s.Require().NoError(err)

	bus := NewBus(testutil.NewTestLogger())
	s.Require().NoError(pub.Start(s.Ctx, bus))
	s.T().Cleanup(func() { _ = pub.Close() })

	return pub, bus
}

func (s *RedisPublisherTestSuite) TestStatusEventsUseStatusChannel() {
	pub, bus := s.newPublisher(CompressionLevelNone)

	sub := s.RedisClient.Subscribe(s.Ctx, statusChannel)
	defer sub.Close()
	_, err := sub.Receive(s.Ctx)
	s.Require().NoError(err)

	bus.Publish(Event{
		Kind:   KindStatusUpdated,
		Status: &drops.MiningStatus{Active: true, Channel: &drops.MiningChannel{Login: "streamer_one"}},
	})

	select {
	case msg := <-sub.Channel():
		ev, err := pub.DecodePayload([]byte(msg.Payload))
		s.Require().NoError(err)
		s.Require().Equal(KindStatusUpdated, ev.Kind)
		s.Require().NotNil(ev.Status)
		s.Require().Equal("streamer_one", ev.Status.Channel.Login)
	case <-time.After(3 * time.Second):
		s.T().Fatal("no status message received")
	}
}

func (s *RedisPublisherTestSuite) TestNotificationsUseNotifyChannel() {
	pub, bus := s.newPublisher(CompressionLevelNone)

	sub := s.RedisClient.Subscribe(s.Ctx, notifyChannel)
	defer sub.Close()
	_, err := sub.Receive(s.Ctx)
	s.Require().NoError(err)

	bus.Publish(Event{
		Kind:        KindDropClaimed,
		DropClaimed: &DropPayload{DropID: "drop-1", DropName: "Golden Crate", CampaignID: "camp-1"},
	})

	select {
	case msg := <-sub.Channel():
		ev, err := pub.DecodePayload([]byte(msg.Payload))
		s.Require().NoError(err)
		s.Require().Equal(KindDropClaimed, ev.Kind)
		s.Require().NotNil(ev.DropClaimed)
		s.Require().Equal("Golden Crate", ev.DropClaimed.DropName)
	case <-time.After(3 * time.Second):
		s.T().Fatal("no notify message received")
	}
}

func (s *RedisPublisherTestSuite) TestCompressedRoundTrip() {
	pub, bus := s.newPublisher(CompressionLevelDefault)

	sub := s.RedisClient.Subscribe(s.Ctx, notifyChannel)
	defer sub.Close()
	_, err := sub.Receive(s.Ctx)
	s.Require().NoError(err)

	// A status-laden payload is large enough to cross the compression
	// threshold.
	bus.Publish(Event{
		Kind: KindMiningComplete,
		Status: &drops.MiningStatus{
			Active:       true,
			Channel:      &drops.MiningChannel{Login: "streamer_two"},
			CampaignName: "Season Finale Rewards Campaign",
		},
		MiningComplete: &MiningCompletePayload{
			CampaignID:   "camp-2",
			CampaignName: "Season Finale Rewards Campaign",
			GameName:     "Rune Siege",
			Reason:       "all drops claimed or satisfied",
		},
	})

	select {
	case msg := <-sub.Channel():
		s.Require().True(isZstdCompressed([]byte(msg.Payload)))
		ev, err := pub.DecodePayload([]byte(msg.Payload))
		s.Require().NoError(err)
		s.Require().Equal(KindMiningComplete, ev.Kind)
		s.Require().Equal("Rune Siege", ev.MiningComplete.GameName)
	case <-time.After(3 * time.Second):
		s.T().Fatal("no message received")
	}
}

func (s *RedisPublisherTestSuite) TestCloseIsIdempotent() {
	pub, err := NewRedisPublisherWithClient(testutil.NewTestLogger(), s.RedisClient, CompressionLevelNone)
	s.Require().NoError(err)

	bus := NewBus(testutil.NewTestLogger())
	s.Require().NoError(pub.Start(s.Ctx, bus))

	s.Require().NoError(pub.Close())
	s.Require().NoError(pub.Close())

	s.Require().Error(pub.Start(s.Ctx, bus), "a closed publisher must not restart")
}
