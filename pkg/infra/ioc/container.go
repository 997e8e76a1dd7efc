package ioc

import (
	"context"
	"log/slog"
	"os"
	"time"

	// env
	"github.com/joho/godotenv"

	// mongodb
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	// repositories/db
	db "github.com/coldkeep/custody-api/pkg/infra/db/mongodb"

	// crypto/HD keys
	hdkeys "github.com/coldkeep/custody-api/pkg/infra/crypto"

	// userpool gateway
	userpool_clients "github.com/coldkeep/custody-api/pkg/infra/clients/userpool"

	// comms dispatcher
	comms_clients "github.com/coldkeep/custody-api/pkg/infra/clients/comms"

	// notification transport
	notification_clients "github.com/coldkeep/custody-api/pkg/infra/clients/notification"
	kafka "github.com/coldkeep/custody-api/pkg/infra/kafka"

	// container
	container "github.com/golobby/container/v3"

	// ports
	common "github.com/coldkeep/custody-api/pkg/domain"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_out "github.com/coldkeep/custody-api/pkg/domain/account/ports/out"
	account_in "github.com/coldkeep/custody-api/pkg/domain/account/ports/in"
	account_services "github.com/coldkeep/custody-api/pkg/domain/account/services"

	comms_in "github.com/coldkeep/custody-api/pkg/domain/comms/ports/in"
	comms_out "github.com/coldkeep/custody-api/pkg/domain/comms/ports/out"
	comms_services "github.com/coldkeep/custody-api/pkg/domain/comms/services"

	notification_in "github.com/coldkeep/custody-api/pkg/domain/notification/ports/in"
	notification_out "github.com/coldkeep/custody-api/pkg/domain/notification/ports/out"
	notification_services "github.com/coldkeep/custody-api/pkg/domain/notification/services"

	recovery_in "github.com/coldkeep/custody-api/pkg/domain/recovery/ports/in"
	recovery_out "github.com/coldkeep/custody-api/pkg/domain/recovery/ports/out"
	recovery_services "github.com/coldkeep/custody-api/pkg/domain/recovery/services"

	relationship_in "github.com/coldkeep/custody-api/pkg/domain/relationship/ports/in"
	relationship_out "github.com/coldkeep/custody-api/pkg/domain/relationship/ports/out"
	relationship_services "github.com/coldkeep/custody-api/pkg/domain/relationship/services"

	inheritance_in "github.com/coldkeep/custody-api/pkg/domain/inheritance/ports/in"
	inheritance_out "github.com/coldkeep/custody-api/pkg/domain/inheritance/ports/out"
	inheritance_services "github.com/coldkeep/custody-api/pkg/domain/inheritance/services"

	txverify_in "github.com/coldkeep/custody-api/pkg/domain/txverify/ports/in"
	txverify_out "github.com/coldkeep/custody-api/pkg/domain/txverify/ports/out"
	txverify_services "github.com/coldkeep/custody-api/pkg/domain/txverify/services"

	mobilepay_in "github.com/coldkeep/custody-api/pkg/domain/mobilepay/ports/in"
	mobilepay_out "github.com/coldkeep/custody-api/pkg/domain/mobilepay/ports/out"
	mobilepay_services "github.com/coldkeep/custody-api/pkg/domain/mobilepay/services"

	"github.com/coldkeep/custody-api/pkg/domain/privileged"
	privileged_entities "github.com/coldkeep/custody-api/pkg/domain/privileged/entities"

	"github.com/coldkeep/custody-api/pkg/domain/keyproof"
	"github.com/coldkeep/custody-api/pkg/domain/screener"
	"github.com/coldkeep/custody-api/pkg/domain/userpool"

	broadcast_clients "github.com/coldkeep/custody-api/pkg/infra/clients/broadcast"
	exchangerate_clients "github.com/coldkeep/custody-api/pkg/infra/clients/exchangerate"
	hsm_clients "github.com/coldkeep/custody-api/pkg/infra/clients/hsm"
)

type ContainerBuilder struct {
	container.Container
}

func NewContainerBuilder() *ContainerBuilder {
	c := container.New()

	b := &ContainerBuilder{
		c,
	}

	err := c.Singleton(func() container.Container {
		return b.Container
	})

	if err != nil {
		slog.Error("Failed to register *container.Container  in NewContainerBuilder.")
		panic(err)
	}

	err = c.Singleton(func() *ContainerBuilder {
		return b
	})

	if err != nil {
		slog.Error("Failed to register *ContainerBuilder in NewContainerBuilder.")
		panic(err)
	}

	return b
}

func (b *ContainerBuilder) Build() container.Container {
	return b.Container
}

// Close releases any resources the container owns (the Mongo client, in
// particular) on shutdown.
func (b *ContainerBuilder) Close(c container.Container) {
	var client *mongo.Client
	if err := c.Resolve(&client); err == nil && client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			slog.Error("Failed to disconnect MongoDB client.", "err", err)
		}
	}
}

func (b *ContainerBuilder) WithEnvFile() *ContainerBuilder {
	if os.Getenv("DEV_ENV") == "true" {
		err := godotenv.Load()
		if err != nil {
			slog.Error("Failed to load .env file")
			panic(err)
		}
	}

	err := b.Container.Singleton(func() (common.Config, error) {
		return EnvironmentConfig()
	})

	if err != nil {
		slog.Error("Failed to load EnvironmentConfig.")
		panic(err)
	}

	err = b.Container.Singleton(func() common.Clock {
		return common.SystemClock{}
	})

	if err != nil {
		slog.Error("Failed to register common.Clock.")
		panic(err)
	}

	return b
}

// InjectMongoDB registers the shared *mongo.Client and every entity
// repository the running domains need.
func InjectMongoDB(c container.Container) error {
	err := c.Singleton(func() (*mongo.Client, error) {
		var config common.Config

		err := c.Resolve(&config)
		if err != nil {
			slog.Error("Failed to resolve config for mongo.Client.", "err", err)
			return nil, err
		}

		mongoOptions := options.Client().ApplyURI(config.MongoDB.URI)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(ctx, mongoOptions)

		if err != nil {
			slog.Error("Failed to connect to MongoDB.", "err", err)
			return nil, err
		}

		return client, nil
	})

	if err != nil {
		slog.Error("Failed to load mongo.Client.")
		return err
	}

	err = c.Singleton(func() (*mongo.Database, error) {
		var client *mongo.Client
		if err := c.Resolve(&client); err != nil {
			return nil, err
		}

		var config common.Config
		if err := c.Resolve(&config); err != nil {
			return nil, err
		}

		return client.Database(config.MongoDB.DBName), nil
	})

	if err != nil {
		slog.Error("Failed to load *mongo.Database.")
		return err
	}

	err = c.Singleton(func() (*db.AccountRepository, error) {
		var database *mongo.Database
		if err := c.Resolve(&database); err != nil {
			slog.Error("Failed to resolve *mongo.Database for AccountRepository.", "err", err)
			return nil, err
		}
		return db.NewAccountRepository(database), nil
	})

	if err != nil {
		slog.Error("Failed to load *db.AccountRepository.")
		return err
	}

	err = c.Singleton(func() (account_out.AccountRepository, error) {
		var repo *db.AccountRepository
		if err := c.Resolve(&repo); err != nil {
			return nil, err
		}
		return repo, nil
	})

	if err != nil {
		slog.Error("Failed to load account_out.AccountRepository.")
		return err
	}

	err = c.Singleton(func() (comms_out.Repository, error) {
		var database *mongo.Database
		if err := c.Resolve(&database); err != nil {
			return nil, err
		}
		return db.NewCommsRepository(database), nil
	})

	if err != nil {
		slog.Error("Failed to load comms_out.Repository.")
		return err
	}

	err = c.Singleton(func() (notification_out.Repository, error) {
		var database *mongo.Database
		if err := c.Resolve(&database); err != nil {
			return nil, err
		}
		return db.NewNotificationRepository(database), nil
	})

	if err != nil {
		slog.Error("Failed to load notification_out.Repository.")
		return err
	}

	err = c.Singleton(func() (notification_out.PreferencesRepository, error) {
		var database *mongo.Database
		if err := c.Resolve(&database); err != nil {
			return nil, err
		}
		return db.NewPreferencesRepository(database), nil
	})

	if err != nil {
		slog.Error("Failed to load notification_out.PreferencesRepository.")
		return err
	}

	err = c.Singleton(func() (recovery_out.Repository, error) {
		var database *mongo.Database
		if err := c.Resolve(&database); err != nil {
			return nil, err
		}
		return db.NewRecoveryRepository(database), nil
	})

	if err != nil {
		slog.Error("Failed to load recovery_out.Repository.")
		return err
	}

	err = c.Singleton(func() (relationship_out.Repository, error) {
		var database *mongo.Database
		if err := c.Resolve(&database); err != nil {
			return nil, err
		}
		return db.NewRelationshipRepository(database), nil
	})

	if err != nil {
		slog.Error("Failed to load relationship_out.Repository.")
		return err
	}

	err = c.Singleton(func() (inheritance_out.Repository, error) {
		var database *mongo.Database
		if err := c.Resolve(&database); err != nil {
			return nil, err
		}
		return db.NewInheritanceRepository(database), nil
	})

	if err != nil {
		slog.Error("Failed to load inheritance_out.Repository.")
		return err
	}

	err = c.Singleton(func() (txverify_out.Repository, error) {
		var database *mongo.Database
		if err := c.Resolve(&database); err != nil {
			return nil, err
		}
		return db.NewTxVerifyRepository(database), nil
	})

	if err != nil {
		slog.Error("Failed to load txverify_out.Repository.")
		return err
	}

	err = c.Singleton(func() (mobilepay_out.Repository, error) {
		var database *mongo.Database
		if err := c.Resolve(&database); err != nil {
			return nil, err
		}
		return db.NewMobilePayRepository(database), nil
	})

	if err != nil {
		slog.Error("Failed to load mobilepay_out.Repository.")
		return err
	}

	return nil
}

// WithHDKeys registers the per-network server key provider that derives
// server_dpub for every new spending keyset (spec.md §4.3, §4.10).
func (b *ContainerBuilder) WithHDKeys() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (account_out.ServerKeyProvider, error) {
		seed := os.Getenv("SERVER_KEY_SEED")
		if seed == "" {
			slog.Warn("SERVER_KEY_SEED not set, deriving from an ephemeral random seed (dev-only)")
			return hdkeys.NewRandomServerKeyProvider()
		}
		return hdkeys.NewServerKeyProvider([]byte(seed))
	})

	if err != nil {
		slog.Error("Failed to load account_out.ServerKeyProvider.")
		panic(err)
	}

	return b
}

// WithUserPool registers the app/hw/recovery factor identity gateway
// (spec.md §4.2) and the key-proof verifier (§4.1).
func (b *ContainerBuilder) WithUserPool() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() userpool.Gateway {
		return userpool_clients.NewInMemoryGateway()
	})

	if err != nil {
		slog.Error("Failed to load userpool.Gateway.")
		panic(err)
	}

	err = c.Singleton(func() *keyproof.Verifier {
		return keyproof.NewVerifier()
	})

	if err != nil {
		slog.Error("Failed to load keyproof.Verifier.")
		panic(err)
	}

	return b
}

// WithAccountDomain wires account_in.Service. Recovery/relationship
// teardown ports are left nil until pkg/domain/recovery and
// pkg/domain/relationship are registered (account_services.Service treats
// both as optional).
func (b *ContainerBuilder) WithAccountDomain() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (account_in.Service, error) {
		var repo account_out.AccountRepository
		if err := c.Resolve(&repo); err != nil {
			slog.Error("Failed to resolve account_out.AccountRepository for account_in.Service.", "err", err)
			return nil, err
		}

		var serverKeys account_out.ServerKeyProvider
		if err := c.Resolve(&serverKeys); err != nil {
			slog.Error("Failed to resolve account_out.ServerKeyProvider for account_in.Service.", "err", err)
			return nil, err
		}

		var clock common.Clock
		if err := c.Resolve(&clock); err != nil {
			slog.Error("Failed to resolve common.Clock for account_in.Service.", "err", err)
			return nil, err
		}

		var pendingKeyIndex account_out.PendingDestinationKeyIndex
		_ = c.Resolve(&pendingKeyIndex) // optional: recovery domain not yet registered

		var recoveryTeardown account_out.RecoveryTeardown
		_ = c.Resolve(&recoveryTeardown) // optional

		var relationshipTeardown account_out.RelationshipTeardown
		_ = c.Resolve(&relationshipTeardown) // optional

		return account_services.NewService(repo, pendingKeyIndex, serverKeys, recoveryTeardown, relationshipTeardown, clock), nil
	})

	if err != nil {
		slog.Error("Failed to load account_in.Service.")
		panic(err)
	}

	err = c.Singleton(func() (privileged.Repository[account_services.ResetFingerprintMutation], error) {
		var database *mongo.Database
		if err := c.Resolve(&database); err != nil {
			return nil, err
		}
		return db.NewVersionedRepository[privileged_entities.Instance[account_services.ResetFingerprintMutation]](database, "privileged_fingerprint_reset_instances"), nil
	})

	if err != nil {
		slog.Error("Failed to load privileged.Repository[ResetFingerprintMutation].")
		panic(err)
	}

	err = c.Singleton(func() (account_in.FingerprintResetService, error) {
		var accounts account_out.AccountRepository
		if err := c.Resolve(&accounts); err != nil {
			slog.Error("Failed to resolve account_out.AccountRepository for account_in.FingerprintResetService.", "err", err)
			return nil, err
		}

		var repo privileged.Repository[account_services.ResetFingerprintMutation]
		if err := c.Resolve(&repo); err != nil {
			slog.Error("Failed to resolve privileged.Repository[ResetFingerprintMutation] for account_in.FingerprintResetService.", "err", err)
			return nil, err
		}

		var clock common.Clock
		if err := c.Resolve(&clock); err != nil {
			slog.Error("Failed to resolve common.Clock for account_in.FingerprintResetService.", "err", err)
			return nil, err
		}

		var config common.Config
		if err := c.Resolve(&config); err != nil {
			slog.Error("Failed to resolve common.Config for account_in.FingerprintResetService.", "err", err)
			return nil, err
		}

		return account_services.NewFingerprintResetService(accounts, repo, config.Privileged.FingerprintResetDelay, clock), nil
	})

	if err != nil {
		slog.Error("Failed to load account_in.FingerprintResetService.")
		panic(err)
	}

	return b
}

// WithCommsDomain wires comms_in.Service (spec.md §4.4) against the Mongo
// repository and the same Twilio/Iterable-shaped sinks the notification
// domain (C6) uses for account notifications, registered by
// WithNotificationDomain — call both before Build().
func (b *ContainerBuilder) WithCommsDomain() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (comms_out.Dispatcher, error) {
		var sinks map[account_entities.TouchpointKind]notification_out.Sink
		if err := c.Resolve(&sinks); err != nil {
			slog.Warn("notification sinks not available, falling back to log-only comms dispatcher", "err", err)
			return comms_clients.NewLogDispatcher(), nil
		}
		return notification_clients.NewCommsDispatcher(sinks), nil
	})

	if err != nil {
		slog.Error("Failed to load comms_out.Dispatcher.")
		panic(err)
	}

	err = c.Singleton(func() (comms_in.Service, error) {
		var repo comms_out.Repository
		if err := c.Resolve(&repo); err != nil {
			slog.Error("Failed to resolve comms_out.Repository for comms_in.Service.", "err", err)
			return nil, err
		}

		var dispatcher comms_out.Dispatcher
		if err := c.Resolve(&dispatcher); err != nil {
			slog.Error("Failed to resolve comms_out.Dispatcher for comms_in.Service.", "err", err)
			return nil, err
		}

		var clock common.Clock
		if err := c.Resolve(&clock); err != nil {
			slog.Error("Failed to resolve common.Clock for comms_in.Service.", "err", err)
			return nil, err
		}

		var config common.Config
		if err := c.Resolve(&config); err != nil {
			slog.Error("Failed to resolve common.Config for comms_in.Service.", "err", err)
			return nil, err
		}

		return comms_services.NewService(repo, dispatcher, clock, config.Comms), nil
	})

	if err != nil {
		slog.Error("Failed to load comms_in.Service.")
		panic(err)
	}

	return b
}

// WithKafka registers the shared *kafka.Client every Kafka-backed producer
// and consumer in the process resolves, built from common.Config.Kafka.
func (b *ContainerBuilder) WithKafka() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (*kafka.Client, error) {
		var config common.Config
		if err := c.Resolve(&config); err != nil {
			slog.Error("Failed to resolve common.Config for kafka.Client.", "err", err)
			return nil, err
		}

		return kafka.NewClient(&kafka.Config{
			BootstrapServers: config.Kafka.Brokers,
			SecurityProtocol: "PLAINTEXT",
		})
	})

	if err != nil {
		slog.Error("Failed to load kafka.Client.")
		panic(err)
	}

	return b
}

// WithNotificationDomain wires notification_in.Service (spec.md §4.5): a
// kafka-go producer for the FIFO-by-account transport, in-memory
// Twilio/Iterable-shaped sinks for the actual per-touchpoint send, and the
// Mongo-backed schedule/preferences stores.
func (b *ContainerBuilder) WithNotificationDomain() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (notification_out.Producer, error) {
		var client *kafka.Client
		if err := c.Resolve(&client); err != nil {
			slog.Error("Failed to resolve kafka.Client for notification_out.Producer.", "err", err)
			return nil, err
		}

		var config common.Config
		if err := c.Resolve(&config); err != nil {
			slog.Error("Failed to resolve common.Config for notification_out.Producer.", "err", err)
			return nil, err
		}

		return notification_clients.NewKafkaProducer(client, config.Kafka.NotificationTopic), nil
	})

	if err != nil {
		slog.Error("Failed to load notification_out.Producer.")
		panic(err)
	}

	err = c.Singleton(func() map[account_entities.TouchpointKind]notification_out.Sink {
		return map[account_entities.TouchpointKind]notification_out.Sink{
			account_entities.TouchpointPhone: notification_clients.NewTwilioSMSSink(),
			account_entities.TouchpointEmail: notification_clients.NewIterableSink(),
			account_entities.TouchpointPush:  notification_clients.NewIterableSink(),
		}
	})

	if err != nil {
		slog.Error("Failed to load notification sink map.")
		panic(err)
	}

	err = c.Singleton(func() notification_out.AccountLookup {
		var repo account_out.AccountRepository
		if err := c.Resolve(&repo); err != nil {
			slog.Error("Failed to resolve account_out.AccountRepository for notification_out.AccountLookup.", "err", err)
			panic(err)
		}
		return notification_clients.NewAccountLookupAdapter(repo)
	})

	if err != nil {
		slog.Error("Failed to load notification_out.AccountLookup.")
		panic(err)
	}

	err = c.Singleton(func() (notification_in.Service, error) {
		var repo notification_out.Repository
		if err := c.Resolve(&repo); err != nil {
			slog.Error("Failed to resolve notification_out.Repository for notification_in.Service.", "err", err)
			return nil, err
		}

		var prefs notification_out.PreferencesRepository
		if err := c.Resolve(&prefs); err != nil {
			slog.Error("Failed to resolve notification_out.PreferencesRepository for notification_in.Service.", "err", err)
			return nil, err
		}

		var producer notification_out.Producer
		if err := c.Resolve(&producer); err != nil {
			slog.Error("Failed to resolve notification_out.Producer for notification_in.Service.", "err", err)
			return nil, err
		}

		var accounts notification_out.AccountLookup
		if err := c.Resolve(&accounts); err != nil {
			slog.Error("Failed to resolve notification_out.AccountLookup for notification_in.Service.", "err", err)
			return nil, err
		}

		var clock common.Clock
		if err := c.Resolve(&clock); err != nil {
			slog.Error("Failed to resolve common.Clock for notification_in.Service.", "err", err)
			return nil, err
		}

		var sinks map[account_entities.TouchpointKind]notification_out.Sink
		if err := c.Resolve(&sinks); err != nil {
			slog.Error("Failed to resolve notification sink map for notification_in.Service.", "err", err)
			return nil, err
		}

		return notification_services.NewService(repo, prefs, producer, sinks, accounts, clock), nil
	})

	if err != nil {
		slog.Error("Failed to load notification_in.Service.")
		panic(err)
	}

	return b
}

// WithRecoveryDomain wires recovery_in.Service (spec.md §4.6) and, from the
// same instance, the account_out.PendingDestinationKeyIndex and
// account_out.RecoveryTeardown ports account_in.Service optionally
// consumes. Call after WithAccountDomain/WithCommsDomain/WithNotificationDomain
// and before Build(); account_in.Service itself is resolved lazily so the
// registration order between this and WithAccountDomain doesn't matter, but
// recovery_in.Service takes account_out.AccountRepository directly rather
// than account_in.Service to avoid a resolve-time cycle (see
// recovery_services.NewService).
func (b *ContainerBuilder) WithRecoveryDomain() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (recovery_in.Service, error) {
		var repo recovery_out.Repository
		if err := c.Resolve(&repo); err != nil {
			slog.Error("Failed to resolve recovery_out.Repository for recovery_in.Service.", "err", err)
			return nil, err
		}

		var accounts account_out.AccountRepository
		if err := c.Resolve(&accounts); err != nil {
			slog.Error("Failed to resolve account_out.AccountRepository for recovery_in.Service.", "err", err)
			return nil, err
		}

		var userpoolGateway userpool.Gateway
		if err := c.Resolve(&userpoolGateway); err != nil {
			slog.Error("Failed to resolve userpool.Gateway for recovery_in.Service.", "err", err)
			return nil, err
		}

		var comms comms_in.Service
		if err := c.Resolve(&comms); err != nil {
			slog.Error("Failed to resolve comms_in.Service for recovery_in.Service.", "err", err)
			return nil, err
		}

		var notifications notification_in.Service
		_ = c.Resolve(&notifications) // optional: degrades to no scheduled reminders

		var config common.Config
		if err := c.Resolve(&config); err != nil {
			slog.Error("Failed to resolve common.Config for recovery_in.Service.", "err", err)
			return nil, err
		}

		var clock common.Clock
		if err := c.Resolve(&clock); err != nil {
			slog.Error("Failed to resolve common.Clock for recovery_in.Service.", "err", err)
			return nil, err
		}

		return recovery_services.NewService(repo, accounts, userpoolGateway, comms, notifications, config.Recovery, clock), nil
	})

	if err != nil {
		slog.Error("Failed to load recovery_in.Service.")
		panic(err)
	}

	err = c.Singleton(func() (account_out.PendingDestinationKeyIndex, error) {
		var repo recovery_out.Repository
		if err := c.Resolve(&repo); err != nil {
			return nil, err
		}
		return repo, nil
	})

	if err != nil {
		slog.Error("Failed to load account_out.PendingDestinationKeyIndex.")
		panic(err)
	}

	err = c.Singleton(func() (account_out.RecoveryTeardown, error) {
		var svc recovery_in.Service
		if err := c.Resolve(&svc); err != nil {
			return nil, err
		}
		return svc, nil
	})

	if err != nil {
		slog.Error("Failed to load account_out.RecoveryTeardown.")
		panic(err)
	}

	return b
}

// WithRelationshipDomain wires relationship_in.Service (spec.md §4.7) and
// account_out.RelationshipTeardown from the same instance, mirroring
// WithRecoveryDomain's pattern. relationship_out.ClaimGuard resolves lazily
// to whatever WithInheritanceDomain registers; call order between the two
// doesn't matter as long as both run before Build().
func (b *ContainerBuilder) WithRelationshipDomain() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (relationship_in.Service, error) {
		var repo relationship_out.Repository
		if err := c.Resolve(&repo); err != nil {
			slog.Error("Failed to resolve relationship_out.Repository for relationship_in.Service.", "err", err)
			return nil, err
		}

		var accounts account_out.AccountRepository
		if err := c.Resolve(&accounts); err != nil {
			slog.Error("Failed to resolve account_out.AccountRepository for relationship_in.Service.", "err", err)
			return nil, err
		}

		var claims relationship_out.ClaimGuard
		_ = c.Resolve(&claims) // optional: inheritance domain not yet registered

		var notifications notification_in.Service
		_ = c.Resolve(&notifications) // optional: degrades to no acceptance notification

		var config common.Config
		if err := c.Resolve(&config); err != nil {
			slog.Error("Failed to resolve common.Config for relationship_in.Service.", "err", err)
			return nil, err
		}

		var clock common.Clock
		if err := c.Resolve(&clock); err != nil {
			slog.Error("Failed to resolve common.Clock for relationship_in.Service.", "err", err)
			return nil, err
		}

		return relationship_services.NewService(repo, accounts, claims, notifications, config.Relationship, clock), nil
	})

	if err != nil {
		slog.Error("Failed to load relationship_in.Service.")
		panic(err)
	}

	err = c.Singleton(func() (account_out.RelationshipTeardown, error) {
		var svc relationship_in.Service
		if err := c.Resolve(&svc); err != nil {
			return nil, err
		}
		return svc, nil
	})

	if err != nil {
		slog.Error("Failed to load account_out.RelationshipTeardown.")
		panic(err)
	}

	return b
}

// WithInheritanceDomain wires inheritance_in.Service (spec.md §4.8) along
// with the HSM co-signer, broadcast and sanctions-screener adapters it
// depends on, and registers it as relationship_out.ClaimGuard. It depends
// on relationship_out.Repository and account_out.AccountRepository
// directly, never on the higher-level *_in.Service types, so it can be
// called in either order relative to WithRelationshipDomain without
// tripping a resolve-time cycle.
func (b *ContainerBuilder) WithInheritanceDomain() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (*hsm_clients.Client, error) {
		var config common.Config
		if err := c.Resolve(&config); err != nil {
			return nil, err
		}
		return hsm_clients.NewClient(config.HSM)
	})

	if err != nil {
		slog.Error("Failed to load *hsm.Client.")
		panic(err)
	}

	err = c.Singleton(func() (inheritance_out.HSMSigner, error) {
		var client *hsm_clients.Client
		if err := c.Resolve(&client); err != nil {
			return nil, err
		}
		return client, nil
	})

	if err != nil {
		slog.Error("Failed to load inheritance_out.HSMSigner.")
		panic(err)
	}

	err = c.Singleton(func() (inheritance_out.Broadcaster, error) {
		var config common.Config
		if err := c.Resolve(&config); err != nil {
			return nil, err
		}
		return broadcast_clients.NewClient(config.Broadcast), nil
	})

	if err != nil {
		slog.Error("Failed to load inheritance_out.Broadcaster.")
		panic(err)
	}

	err = c.Singleton(func() (inheritance_out.Screener, error) {
		// No blocked-address feed is wired yet; Replace lets an operator
		// or a future SanctionsScreenerURL poller repopulate this set
		// without restarting the process.
		return screener.New(nil), nil
	})

	if err != nil {
		slog.Error("Failed to load inheritance_out.Screener.")
		panic(err)
	}

	err = c.Singleton(func() (inheritance_in.Service, error) {
		var repo inheritance_out.Repository
		if err := c.Resolve(&repo); err != nil {
			slog.Error("Failed to resolve inheritance_out.Repository for inheritance_in.Service.", "err", err)
			return nil, err
		}

		var relationships relationship_out.Repository
		if err := c.Resolve(&relationships); err != nil {
			slog.Error("Failed to resolve relationship_out.Repository for inheritance_in.Service.", "err", err)
			return nil, err
		}

		var accounts account_out.AccountRepository
		if err := c.Resolve(&accounts); err != nil {
			slog.Error("Failed to resolve account_out.AccountRepository for inheritance_in.Service.", "err", err)
			return nil, err
		}

		var hsm inheritance_out.HSMSigner
		if err := c.Resolve(&hsm); err != nil {
			slog.Error("Failed to resolve inheritance_out.HSMSigner for inheritance_in.Service.", "err", err)
			return nil, err
		}

		var broadcaster inheritance_out.Broadcaster
		if err := c.Resolve(&broadcaster); err != nil {
			slog.Error("Failed to resolve inheritance_out.Broadcaster for inheritance_in.Service.", "err", err)
			return nil, err
		}

		var screenerPort inheritance_out.Screener
		if err := c.Resolve(&screenerPort); err != nil {
			slog.Error("Failed to resolve inheritance_out.Screener for inheritance_in.Service.", "err", err)
			return nil, err
		}

		var notifications notification_in.Service
		_ = c.Resolve(&notifications) // optional: degrades to no claim-lifecycle notifications

		var config common.Config
		if err := c.Resolve(&config); err != nil {
			slog.Error("Failed to resolve common.Config for inheritance_in.Service.", "err", err)
			return nil, err
		}

		var clock common.Clock
		if err := c.Resolve(&clock); err != nil {
			slog.Error("Failed to resolve common.Clock for inheritance_in.Service.", "err", err)
			return nil, err
		}

		return inheritance_services.NewService(repo, relationships, accounts, hsm, broadcaster, screenerPort, notifications, config.Inheritance, clock), nil
	})

	if err != nil {
		slog.Error("Failed to load inheritance_in.Service.")
		panic(err)
	}

	err = c.Singleton(func() (relationship_out.ClaimGuard, error) {
		var svc inheritance_in.Service
		if err := c.Resolve(&svc); err != nil {
			return nil, err
		}
		return svc, nil
	})

	if err != nil {
		slog.Error("Failed to load relationship_out.ClaimGuard.")
		panic(err)
	}

	return b
}

// WithTxVerifyDomain wires txverify_in.Service (spec.md §4.9): policy
// updates, out-of-band confirmation requests, and the single-use
// HSM-signed grant consumed later by the Mobile-Pay signer. Must be
// called after WithInheritanceDomain, which registers the shared
// *hsm_clients.Client this domain reuses as its grant-signing port.
func (b *ContainerBuilder) WithTxVerifyDomain() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (txverify_out.HSMGrantor, error) {
		var client *hsm_clients.Client
		if err := c.Resolve(&client); err != nil {
			return nil, err
		}
		return client, nil
	})

	if err != nil {
		slog.Error("Failed to load txverify_out.HSMGrantor.")
		panic(err)
	}

	err = c.Singleton(func() (txverify_in.Service, error) {
		var repo txverify_out.Repository
		if err := c.Resolve(&repo); err != nil {
			slog.Error("Failed to resolve txverify_out.Repository for txverify_in.Service.", "err", err)
			return nil, err
		}

		var accounts account_out.AccountRepository
		if err := c.Resolve(&accounts); err != nil {
			slog.Error("Failed to resolve account_out.AccountRepository for txverify_in.Service.", "err", err)
			return nil, err
		}

		var hsm txverify_out.HSMGrantor
		if err := c.Resolve(&hsm); err != nil {
			slog.Error("Failed to resolve txverify_out.HSMGrantor for txverify_in.Service.", "err", err)
			return nil, err
		}

		var config common.Config
		if err := c.Resolve(&config); err != nil {
			slog.Error("Failed to resolve common.Config for txverify_in.Service.", "err", err)
			return nil, err
		}

		var clock common.Clock
		if err := c.Resolve(&clock); err != nil {
			slog.Error("Failed to resolve common.Clock for txverify_in.Service.", "err", err)
			return nil, err
		}

		return txverify_services.NewService(repo, accounts, hsm, config.TxVerify, clock), nil
	})

	if err != nil {
		slog.Error("Failed to load txverify_in.Service.")
		panic(err)
	}

	return b
}

// WithMobilePayDomain wires mobilepay_in.Service (spec.md §4.10): the
// spending-limit setup endpoint and the PSBT admission/co-sign/broadcast
// pipeline. Reuses the shared *hsm_clients.Client for HSM co-signing and
// *broadcast_clients.Client for broadcast, both registered by
// WithInheritanceDomain, and txverify_in.Service as its grant consumer, so
// this must be called after both WithInheritanceDomain and
// WithTxVerifyDomain.
func (b *ContainerBuilder) WithMobilePayDomain() *ContainerBuilder {
	c := b.Container

	err := c.Singleton(func() (mobilepay_out.HSMSigner, error) {
		var client *hsm_clients.Client
		if err := c.Resolve(&client); err != nil {
			return nil, err
		}
		return client, nil
	})

	if err != nil {
		slog.Error("Failed to load mobilepay_out.HSMSigner.")
		panic(err)
	}

	err = c.Singleton(func() (mobilepay_out.Broadcaster, error) {
		var client *broadcast_clients.Client
		if err := c.Resolve(&client); err != nil {
			return nil, err
		}
		return client, nil
	})

	if err != nil {
		slog.Error("Failed to load mobilepay_out.Broadcaster.")
		panic(err)
	}

	err = c.Singleton(func() (mobilepay_out.Screener, error) {
		var screenerPort inheritance_out.Screener
		if err := c.Resolve(&screenerPort); err != nil {
			return nil, err
		}
		return screenerPort, nil
	})

	if err != nil {
		slog.Error("Failed to load mobilepay_out.Screener.")
		panic(err)
	}

	err = c.Singleton(func() (mobilepay_out.ExchangeRate, error) {
		var config common.Config
		if err := c.Resolve(&config); err != nil {
			return nil, err
		}
		return exchangerate_clients.NewClient(config.MobilePay), nil
	})

	if err != nil {
		slog.Error("Failed to load mobilepay_out.ExchangeRate.")
		panic(err)
	}

	err = c.Singleton(func() (mobilepay_out.GrantConsumer, error) {
		var svc txverify_in.Service
		if err := c.Resolve(&svc); err != nil {
			return nil, err
		}
		return svc, nil
	})

	if err != nil {
		slog.Error("Failed to load mobilepay_out.GrantConsumer.")
		panic(err)
	}

	err = c.Singleton(func() (mobilepay_in.Service, error) {
		var repo mobilepay_out.Repository
		if err := c.Resolve(&repo); err != nil {
			slog.Error("Failed to resolve mobilepay_out.Repository for mobilepay_in.Service.", "err", err)
			return nil, err
		}

		var accounts account_out.AccountRepository
		if err := c.Resolve(&accounts); err != nil {
			slog.Error("Failed to resolve account_out.AccountRepository for mobilepay_in.Service.", "err", err)
			return nil, err
		}

		var hsm mobilepay_out.HSMSigner
		if err := c.Resolve(&hsm); err != nil {
			slog.Error("Failed to resolve mobilepay_out.HSMSigner for mobilepay_in.Service.", "err", err)
			return nil, err
		}

		var broadcaster mobilepay_out.Broadcaster
		if err := c.Resolve(&broadcaster); err != nil {
			slog.Error("Failed to resolve mobilepay_out.Broadcaster for mobilepay_in.Service.", "err", err)
			return nil, err
		}

		var screenerPort mobilepay_out.Screener
		if err := c.Resolve(&screenerPort); err != nil {
			slog.Error("Failed to resolve mobilepay_out.Screener for mobilepay_in.Service.", "err", err)
			return nil, err
		}

		var exchange mobilepay_out.ExchangeRate
		if err := c.Resolve(&exchange); err != nil {
			slog.Error("Failed to resolve mobilepay_out.ExchangeRate for mobilepay_in.Service.", "err", err)
			return nil, err
		}

		var grants mobilepay_out.GrantConsumer
		if err := c.Resolve(&grants); err != nil {
			slog.Error("Failed to resolve mobilepay_out.GrantConsumer for mobilepay_in.Service.", "err", err)
			return nil, err
		}

		var config common.Config
		if err := c.Resolve(&config); err != nil {
			slog.Error("Failed to resolve common.Config for mobilepay_in.Service.", "err", err)
			return nil, err
		}

		var clock common.Clock
		if err := c.Resolve(&clock); err != nil {
			slog.Error("Failed to resolve common.Clock for mobilepay_in.Service.", "err", err)
			return nil, err
		}

		return mobilepay_services.NewService(repo, accounts, hsm, broadcaster, screenerPort, exchange, grants, config.MobilePay, clock), nil
	})

	if err != nil {
		slog.Error("Failed to load mobilepay_in.Service.")
		panic(err)
	}

	return b
}

func (b *ContainerBuilder) With(resolver interface{}) *ContainerBuilder {
	c := b.Container

	err := c.Singleton(resolver)

	if err != nil {
		slog.Error("Failed to register resolver.", "err", err)
		panic(err)
	}

	return b
}
