// Package kafka publishes encoded execution events to a Kafka topic. Two
// clients are supported: IBM/sarama (default) and segmentio/kafka-go.
package kafka
