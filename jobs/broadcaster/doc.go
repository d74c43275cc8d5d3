// Package broadcaster implements a background job that periodically
// scans the L1 outbox for unpublished updates and publishes them
// to Kafka as JSON, acking each one Kafka accepted.
package broadcaster
