package config

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	GracefulDuration time.Duration
	Metrics          Metrics
	Logs             Logs
	Pipeline         Pipeline
	Connection       Connection
	Cache            Cache
	Router           Router
	Dispatch         Dispatch
	Delivery         Delivery
	Providers        Providers
	Channels         Channels
	History          History
	DeadLetterQueue  S3
	Archive          S3
	Kafka            Kafka
	Valkey           Valkey
}

type Metrics struct {
	Port int
}

type Logs struct {
	Level   int
	Encoder EncoderType
}

type EncoderType string

const (
	EncoderTypeJson    EncoderType = "json"
	EncoderTypeConsole EncoderType = "console"
)

type Pipeline struct {
	Workers     int
	EventBuffer int
}

// Connection governs provider reconnect and health supervision.
type Connection struct {
	DialTimeout            time.Duration
	BackoffBaseDelay       time.Duration
	BackoffMaxDelay        time.Duration
	MaxConsecutiveFailures int
	HealthInterval         time.Duration
	StaleThreshold         time.Duration
}

type Cache struct {
	Shards       int
	RingCapacity int
}

type Router struct {
	ResolveTimeout     time.Duration
	MinFantasyDelta    float64
	QuoteMoveThreshold float64
}

type Dispatch struct {
	TickInterval  time.Duration
	BatchSize     int
	QueueCapacity int
	MaxAttempts   int
}

type Delivery struct {
	Workers            int
	BatchFlushInterval time.Duration
	Policies           Policies
}

type Policies struct {
	Websocket Policy
	Push      Policy
	SMS       Policy
	Email     Policy
}

// Policy is the static delivery policy for one channel. A zero window
// disables that rate limit.
type Policy struct {
	MaxPerMinute  int
	MaxPerHour    int
	MaxPerDay     int
	Batchable     bool
	RetryAttempts uint
	RetryDelay    time.Duration
}

type Providers struct {
	FanStats   WebsocketProvider
	OddsLine   WebsocketProvider
	StatStream StreamProvider
}

type WebsocketProvider struct {
	Enabled bool
	URL     string
	Topics  []string
}

// StreamProvider consumes from the broker configured in the Kafka section.
type StreamProvider struct {
	Enabled bool
}

type Channels struct {
	Websocket WebsocketChannel
	Push      HTTPChannel
	SMS       SMSChannel
	Email     EmailChannel
}

type WebsocketChannel struct {
	Port int
}

type HTTPChannel struct {
	URL   string
	Creds TokenCreds
}

type SMSChannel struct {
	URL   string
	From  string
	Creds TokenCreds
}

type EmailChannel struct {
	From  string
	Creds TokenCreds
}

type TokenCreds struct {
	Token string
}

func (c TokenCreds) String() string {
	if c.Token != "" {
		return "token set"
	}

	return "no token"
}

type History struct {
	TTL       time.Duration
	KeyPrefix string
}

type S3 struct {
	Bucket       string
	KeyPrefix    string
	BaseEndpoint string
	Region       string
	UsePathStyle bool
	Creds        AWSCreds
}

type AWSCreds struct {
	AccessKeyID     string
	SecretAccessKey string
}

func (c AWSCreds) String() string {
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		return "creds set"
	}

	return "no creds"
}

type Kafka struct {
	Broker   KafkaBroker
	Consumer KafkaConsumer
}

type KafkaBroker struct {
	URLs    string
	Version string
	Creds   KafkaCreds
}

type KafkaCreds struct{}

func (c KafkaCreds) String() string {
	return ""
}

type KafkaConsumer struct {
	Topic string
	Group string
}

type Valkey struct {
	URL   string
	Creds ValkeyCreds
}

type ValkeyCreds struct {
	Password string
}

func (c ValkeyCreds) String() string {
	if c.Password != "" {
		return "password set"
	}

	return "no password"
}

// Validate rejects configurations the runtime cannot operate with. It is
// called once at startup so bad deployments fail before connecting anywhere.
func (c *Config) Validate() error {
	errs := []error{}

	if c.Connection.DialTimeout <= 0 {
		errs = append(errs, errors.New("connection.dialTimeout must be positive"))
	}

	if c.Connection.BackoffBaseDelay <= 0 {
		errs = append(errs, errors.New("connection.backoffBaseDelay must be positive"))
	}

	if c.Connection.BackoffMaxDelay < c.Connection.BackoffBaseDelay {
		errs = append(errs, errors.New("connection.backoffMaxDelay must be >= connection.backoffBaseDelay"))
	}

	if c.Connection.MaxConsecutiveFailures <= 0 {
		errs = append(errs, errors.New("connection.maxConsecutiveFailures must be positive"))
	}

	if c.Connection.HealthInterval <= 0 || c.Connection.StaleThreshold <= 0 {
		errs = append(errs, errors.New("connection health settings must be positive"))
	}

	if c.Cache.Shards <= 0 || c.Cache.RingCapacity <= 0 {
		errs = append(errs, errors.New("cache.shards and cache.ringCapacity must be positive"))
	}

	if c.Router.ResolveTimeout <= 0 {
		errs = append(errs, errors.New("router.resolveTimeout must be positive"))
	}

	if c.Dispatch.TickInterval <= 0 {
		errs = append(errs, errors.New("dispatch.tickInterval must be positive"))
	}

	if c.Dispatch.BatchSize <= 0 {
		errs = append(errs, errors.New("dispatch.batchSize must be positive"))
	}

	if c.Dispatch.MaxAttempts <= 0 {
		errs = append(errs, errors.New("dispatch.maxAttempts must be positive"))
	}

	if c.Delivery.BatchFlushInterval <= 0 {
		errs = append(errs, errors.New("delivery.batchFlushInterval must be positive"))
	}

	for name, policy := range map[string]Policy{
		"websocket": c.Delivery.Policies.Websocket,
		"push":      c.Delivery.Policies.Push,
		"sms":       c.Delivery.Policies.SMS,
		"email":     c.Delivery.Policies.Email,
	} {
		err := policy.validate()
		if err != nil {
			errs = append(errs, fmt.Errorf("delivery.policies.%s: %w", name, err))
		}
	}

	for name, provider := range map[string]WebsocketProvider{
		"fanstats": c.Providers.FanStats,
		"oddsline": c.Providers.OddsLine,
	} {
		if provider.Enabled && provider.URL == "" {
			errs = append(errs, fmt.Errorf("providers.%s.url is required when enabled", name))
		}
	}

	if c.Providers.StatStream.Enabled && c.Kafka.Broker.URLs == "" {
		errs = append(errs, errors.New("kafka.broker.urls is required when providers.statstream is enabled"))
	}

	return errors.Join(errs...)
}

func (p Policy) validate() error {
	if p.MaxPerMinute < 0 || p.MaxPerHour < 0 || p.MaxPerDay < 0 {
		return errors.New("rate limits must not be negative")
	}

	if p.RetryAttempts < 1 {
		return errors.New("retryAttempts must be at least 1")
	}

	if p.RetryDelay < 0 {
		return errors.New("retryDelay must not be negative")
	}

	return nil
}
