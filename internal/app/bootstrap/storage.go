package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	appconfig "github.com/wolfman30/leasing-ai-platform/internal/config"
	"github.com/wolfman30/leasing-ai-platform/internal/conversation"
	"github.com/wolfman30/leasing-ai-platform/internal/leads"
	"github.com/wolfman30/leasing-ai-platform/internal/property"
	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

const tracerName = "github.com/wolfman30/leasing-ai-platform/conversation"

// Clients carries the shared connections the builders draw from. Any field may be nil.
type Clients struct {
	Redis *redis.Client
	SQL   *sql.DB
	Pool  *pgxpool.Pool
	AWS   *aws.Config
}

// BuildSessionStore selects the session backend named by SESSION_BACKEND.
func BuildSessionStore(cfg *appconfig.Config, clients Clients) (conversation.SessionStore, error) {
	tracer := otel.Tracer(tracerName)
	switch cfg.SessionBackend {
	case "", "memory":
		return conversation.NewMemorySessionStore(), nil
	case "redis":
		if clients.Redis == nil {
			return nil, fmt.Errorf("bootstrap: session backend redis needs a reachable REDIS_ADDR")
		}
		return conversation.NewRedisSessionStore(clients.Redis, cfg.SessionTTL, tracer), nil
	case "postgres":
		if clients.SQL == nil {
			return nil, fmt.Errorf("bootstrap: session backend postgres needs DATABASE_URL")
		}
		return conversation.NewPostgresSessionStore(clients.SQL, cfg.SessionsTable, tracer), nil
	case "dynamodb":
		if clients.AWS == nil {
			return nil, fmt.Errorf("bootstrap: session backend dynamodb needs AWS config")
		}
		return conversation.NewDynamoSessionStore(dynamodb.NewFromConfig(*clients.AWS), cfg.SessionsTable, cfg.SessionTTL, tracer), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown session backend %q", cfg.SessionBackend)
	}
}

// BuildLeadsRepository selects the lead store named by LEADS_BACKEND.
func BuildLeadsRepository(cfg *appconfig.Config, clients Clients) (leads.Repository, error) {
	switch cfg.LeadsBackend {
	case "", "memory":
		return leads.NewInMemoryRepository(), nil
	case "postgres":
		if clients.Pool == nil {
			return nil, fmt.Errorf("bootstrap: leads backend postgres needs DATABASE_URL")
		}
		return leads.NewPostgresRepository(clients.Pool), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown leads backend %q", cfg.LeadsBackend)
	}
}

// BuildPropertyStore keeps the operator config in Redis when available and
// seeds it from PROPERTY_CONFIG_FILE (a path or s3://bucket/key) on first boot.
func BuildPropertyStore(ctx context.Context, cfg *appconfig.Config, clients Clients, logger *logging.Logger) (property.Store, error) {
	if logger == nil {
		logger = logging.Default()
	}
	var store property.Store
	if clients.Redis != nil {
		store = property.NewRedisStore(clients.Redis)
	} else {
		store = property.NewMemoryStore()
	}
	var opts []property.SourceOption
	if clients.AWS != nil {
		opts = append(opts, property.WithS3Client(s3.NewFromConfig(*clients.AWS)))
	}
	seeded, err := property.Seed(ctx, store, cfg.PropertyConfigFile, opts...)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: seed property config: %w", err)
	}
	if seeded {
		logger.Info("property config seeded", "file", cfg.PropertyConfigFile)
	}
	return store, nil
}
