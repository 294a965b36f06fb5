package config

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"

	EventsNone     = "none"
	EventsKafka    = "kafka"
	EventsRabbitMQ = "rabbitmq"
)
