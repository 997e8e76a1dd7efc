package common

import "time"

type MongoDBConfig struct {
	DBName      string
	URI         string
	PublicKey   string
	Certificate string
}

type KafkaConfig struct {
	// Kafka bootstrap brokers to connect to, as a comma separated list (ie: "kafka1:9092,kafka2:9092")
	Brokers string

	// Kafka topic the notification scheduler publishes to (FIFO by account)
	NotificationTopic string

	// Kafka consumer group definition (ie: consumer group name)
	Group string

	// Kafka consumer consume initial offset from oldest (default: true)
	Oldest bool

	// Sarama/kafka-go client logging (default: false)
	Verbose bool
}

type HSMConfig struct {
	Endpoint string
	Insecure bool // dev-only: skip TLS for local HSM simulator
}

type RecoveryConfig struct {
	DelayPeriod            time.Duration // spec default: 7 * 24h
	ContestationWindow     time.Duration // time after delay elapses during which a contest still blocks completion
	TestDelayOverrideAllowed bool        // non-prod override for integration tests
}

type InheritanceConfig struct {
	ClaimLockPeriod time.Duration // spec default: 6 months
}

type RelationshipConfig struct {
	InvitationTTL time.Duration // how long an Invitation's code stays valid
	CodeBitLength int           // spec default: 20 bits (~4 Crockford characters)
}

type MobilePayConfig struct {
	Enabled                 bool // feature flag gating the whole sign endpoint (spec.md §4.10 step 1)
	DefaultDailyLimitSats   int64
	MaxDailyLimitSats       int64
	MaxFeeRateSatPerVByte   int64 // sanity ceiling rejecting a malformed/overpaying PSBT
	SanctionsScreenerURL    string
	ExchangeRateProviderURL string
}

type BroadcastConfig struct {
	EndpointURL string // e.g. an Esplora-compatible /tx submission endpoint
}

type TxVerifyConfig struct {
	RequestTTL          time.Duration // how long a confirmation_token stays valid
	ConfirmationBaseURL string        // base URL the out-of-band confirmation link is built from
}

type PrivilegedConfig struct {
	FingerprintResetDelay time.Duration // spec.md §4.12 DelayNotify window before a fingerprint reset applies
}

type CommsConfig struct {
	VerificationCodeTTL    time.Duration
	VerificationCodeLength int
	MaxAttemptsPerWindow   int
	RateLimitWindow        time.Duration
}

type Config struct {
	MongoDB      MongoDBConfig
	Kafka        KafkaConfig
	HSM          HSMConfig
	Recovery     RecoveryConfig
	Inheritance  InheritanceConfig
	MobilePay    MobilePayConfig
	Comms        CommsConfig
	Relationship RelationshipConfig
	Broadcast    BroadcastConfig
	TxVerify     TxVerifyConfig
	Privileged   PrivilegedConfig
}
