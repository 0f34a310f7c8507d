//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"rolesync/internal/platform/config"
	platformkafka "rolesync/internal/platform/kafka"
	id "rolesync/pkg/domain"
	"rolesync/pkg/platform/notify"
	"rolesync/pkg/platform/notify/sinks/kafka"
	"rolesync/pkg/testutil/containers"
)

const topic = "rolesync.notifications.test"

type KafkaSinkSuite struct {
	suite.Suite
	broker string
	client *kgo.Client
}

func TestKafkaSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	ctx := context.Background()
	s.broker = containers.GetManager().GetRedpanda(s.T()).Broker

	cl, err := platformkafka.New(ctx, config.KafkaConfig{Brokers: []string{s.broker}, NotifyTopic: topic})
	s.Require().NoError(err)
	s.client = cl
	s.Require().NoError(platformkafka.EnsureTopic(ctx, cl, topic, 1))
	// A second call sees TopicAlreadyExists and succeeds.
	s.Require().NoError(platformkafka.EnsureTopic(ctx, cl, topic, 1))
}

func (s *KafkaSinkSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *KafkaSinkSuite) TestDeliverKeysByAccount() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	acct := id.NewAccountID()

	err := kafka.New(s.client, topic).Deliver(ctx, []notify.Event{
		{ID: "evt-1", Type: notify.EventRolesAutoCompleted, AccountID: acct, Timestamp: time.Now()},
	})
	s.Require().NoError(err)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	for {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err())
		var found *kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			if string(r.Key) == acct.String() {
				found = r
			}
		})
		if found == nil {
			continue
		}
		var got notify.Event
		s.Require().NoError(json.Unmarshal(found.Value, &got))
		s.Equal("evt-1", got.ID)
		s.Equal(notify.EventRolesAutoCompleted, got.Type)
		return
	}
}
