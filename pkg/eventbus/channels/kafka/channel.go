// Package kafka provides the Kafka bus transport for production deployments.
package kafka

import (
	"errors"
	"os"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
)

// brokersFromEnv reads the comma-separated broker list from KAFKA_BROKERS.
func brokersFromEnv() ([]string, error) {
	raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if raw == "" {
		return nil, errors.New("KAFKA_BROKERS environment variable is not set or empty")
	}

	brokers := make([]string, 0)
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS contains no usable broker addresses")
	}

	return brokers, nil
}

// CreateChannel creates a Kafka publisher and subscriber pair for the given
// service. Each service gets its own consumer group so every instance of the
// worker fleet shares one cursor while the scheduler reads independently.
func CreateChannel(logger watermill.LoggerAdapter, serviceName string) (*kafka.Publisher, *kafka.Subscriber, error) {
	brokers, err := brokersFromEnv()
	if err != nil {
		return nil, nil, err
	}

	subConfig := kafka.DefaultSaramaSubscriberConfig()
	subConfig.ClientID = "dineflow-" + serviceName
	subConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: subConfig,
			ConsumerGroup:         "dineflow-" + serviceName,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	pubConfig := sarama.NewConfig()
	pubConfig.ClientID = "dineflow-" + serviceName
	pubConfig.Producer.Return.Successes = true
	pubConfig.Producer.RequiredAcks = sarama.WaitForAll

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: pubConfig,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		if closeErr := subscriber.Close(); closeErr != nil {
			logger.Error("Failed to close subscriber after publisher error", closeErr, nil)
		}
		return nil, nil, err
	}

	return publisher, subscriber, nil
}
