package ioc

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	common "github.com/coldkeep/custody-api/pkg/domain"
)

// buildMongoURI constructs a MongoDB connection URI with credentials if provided
func buildMongoURI() string {
	// First check if a full URI is provided
	uri := os.Getenv("MONGO_URI")

	// If MONGODB_USER and MONGODB_PASSWORD are provided, inject them into the URI
	user := os.Getenv("MONGODB_USER")
	password := os.Getenv("MONGODB_PASSWORD")

	if user != "" && password != "" {
		// Parse the existing URI
		parsed, err := url.Parse(uri)
		if err == nil && parsed.User == nil {
			// No credentials in the URI, add them
			parsed.User = url.UserPassword(user, password)
			// Add authSource=admin for MongoDB with authentication
			q := parsed.Query()
			if q.Get("authSource") == "" {
				q.Set("authSource", "admin")
				parsed.RawQuery = q.Encode()
			}
			return parsed.String()
		}
	}

	// If no separate credentials, try to build from individual components
	if uri == "" {
		host := os.Getenv("MONGODB_HOST")
		port := os.Getenv("MONGODB_PORT")
		dbName := os.Getenv("MONGODB_DATABASE")
		if host != "" && port != "" && dbName != "" {
			if user != "" && password != "" {
				uri = fmt.Sprintf("mongodb://%s:%s@%s:%s/%s?authSource=admin",
					url.QueryEscape(user), url.QueryEscape(password), host, port, dbName)
			} else {
				uri = fmt.Sprintf("mongodb://%s:%s/%s", host, port, dbName)
			}
		}
	}

	return uri
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func int64Env(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// EnvironmentConfig loads every ambient and domain config value from the
// process environment, falling back to the spec.md defaults for recovery,
// inheritance, mobile-pay and comms.
func EnvironmentConfig() (common.Config, error) {
	config := common.Config{
		MongoDB: common.MongoDBConfig{
			URI:         buildMongoURI(),
			PublicKey:   os.Getenv("MONGO_PUB_KEY"),
			Certificate: os.Getenv("MONGO_CERT"),
			DBName:      os.Getenv("MONGODB_DATABASE"),
		},
		Kafka: common.KafkaConfig{
			Brokers:           os.Getenv("KAFKA_BROKERS"),
			NotificationTopic: envOrDefault("KAFKA_NOTIFICATION_TOPIC", "custody.notifications"),
			Group:             envOrDefault("KAFKA_CONSUMER_GROUP", "custody-api"),
			Oldest:            boolEnv("KAFKA_OLDEST", true),
			Verbose:           boolEnv("KAFKA_VERBOSE", false),
		},
		HSM: common.HSMConfig{
			Endpoint: os.Getenv("HSM_ENDPOINT"),
			Insecure: boolEnv("HSM_INSECURE", false),
		},
		Recovery: common.RecoveryConfig{
			DelayPeriod:              durationEnv("RECOVERY_DELAY_PERIOD", 7*24*time.Hour),
			ContestationWindow:       durationEnv("RECOVERY_CONTESTATION_WINDOW", 24*time.Hour),
			TestDelayOverrideAllowed: boolEnv("RECOVERY_TEST_DELAY_OVERRIDE_ALLOWED", false),
		},
		Inheritance: common.InheritanceConfig{
			ClaimLockPeriod: durationEnv("INHERITANCE_CLAIM_LOCK_PERIOD", 6*30*24*time.Hour),
		},
		MobilePay: common.MobilePayConfig{
			Enabled:                 boolEnv("MOBILE_PAY_ENABLED", true),
			DefaultDailyLimitSats:   int64Env("MOBILE_PAY_DEFAULT_DAILY_LIMIT_SATS", 1_000_000),
			MaxDailyLimitSats:       int64Env("MOBILE_PAY_MAX_DAILY_LIMIT_SATS", 10_000_000),
			MaxFeeRateSatPerVByte:   int64Env("MOBILE_PAY_MAX_FEE_RATE_SAT_PER_VBYTE", 500),
			SanctionsScreenerURL:    os.Getenv("SANCTIONS_SCREENER_URL"),
			ExchangeRateProviderURL: os.Getenv("EXCHANGE_RATE_PROVIDER_URL"),
		},
		Comms: common.CommsConfig{
			VerificationCodeTTL:    durationEnv("COMMS_VERIFICATION_CODE_TTL", 10*time.Minute),
			VerificationCodeLength: intEnv("COMMS_VERIFICATION_CODE_LENGTH", 6),
			MaxAttemptsPerWindow:   intEnv("COMMS_MAX_ATTEMPTS_PER_WINDOW", 5),
			RateLimitWindow:        durationEnv("COMMS_RATE_LIMIT_WINDOW", time.Hour),
		},
		Relationship: common.RelationshipConfig{
			InvitationTTL: durationEnv("RELATIONSHIP_INVITATION_TTL", 7*24*time.Hour),
			CodeBitLength: intEnv("RELATIONSHIP_CODE_BIT_LENGTH", 20),
		},
		Broadcast: common.BroadcastConfig{
			EndpointURL: os.Getenv("BROADCAST_ENDPOINT_URL"),
		},
		TxVerify: common.TxVerifyConfig{
			RequestTTL:          durationEnv("TX_VERIFY_REQUEST_TTL", 15*time.Minute),
			ConfirmationBaseURL: envOrDefault("TX_VERIFY_CONFIRMATION_BASE_URL", "https://confirm.example.com"),
		},
		Privileged: common.PrivilegedConfig{
			FingerprintResetDelay: durationEnv("FINGERPRINT_RESET_DELAY", 24*time.Hour),
		},
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
