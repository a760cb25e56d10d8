package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

type Config struct {
	AppName                       string        `env:"APP_NAME" env-default:"fern"`
	Port                          int           `env:"PORT" env-default:"3000"`
	LogLevel                      string        `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool          `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int           `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int           `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int           `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string      `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string      `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PATCH,DELETE"`
	StartupMaxAttempts            int           `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`
	ShutdownTimeout               time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"15s"`

	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:"localhost"`
	// Database port
	DatabasePort int `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:"fern"`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name
	DatabaseName string `env:"DB_NAME" env-default:"fern"`
	// Database SSL mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	// Migration Folder Path
	DatabaseMigrationFolderPath string `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/migrations"`
	// Database Migration Version
	DatabaseMigrationVersion int `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	// Run migrations when the server starts
	DatabaseMigrateOnStart bool `env:"DB_MIGRATE_ON_START" env-default:"true"`

	// Auth
	AuthEnabled   bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:""`

	// Redis backs the pass lock and the shared CDC key allocator. Empty host disables both.
	RedisHost     string        `env:"REDIS_HOST" env-default:""`
	RedisPort     int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	PassLockTTL   time.Duration `env:"PASS_LOCK_TTL" env-default:"30m"`

	// Kafka brokers (comma-separated). Empty disables stage log events.
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:""`
	// Kafka topic for stage log lifecycle events
	KafkaTopic string `env:"KAFKA_TOPIC" env-default:"fern.stage-logs"`

	// Neo4j lineage graph. Empty URI disables lineage.
	Neo4jURI      string `env:"NEO4J_URI" env-default:""`
	Neo4jUser     string `env:"NEO4J_USER" env-default:"neo4j"`
	Neo4jPassword string `env:"NEO4J_PASSWORD" env-default:""`
	Neo4jDatabase string `env:"NEO4J_DATABASE" env-default:"neo4j"`

	// Tracing
	TraceExporter    string        `env:"TRACE_EXPORTER" env-default:"none"`
	TraceSampleRatio float64       `env:"TRACE_SAMPLE_RATIO" env-default:"1"`
	OTLPEndpoint     string        `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol     string        `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure     bool          `env:"OTLP_INSECURE" env-default:"true"`
	OTLPTimeout      time.Duration `env:"OTLP_TIMEOUT" env-default:"10s"`

	// Mover selects the dataset mover: noop, http or object.
	Mover string `env:"MOVER" env-default:"noop"`
	// HTTP mover
	MoverURL          string        `env:"MOVER_URL" env-default:""`
	MoverTimeout      time.Duration `env:"MOVER_TIMEOUT" env-default:"5m"`
	MoverSuccessExpr  string        `env:"MOVER_SUCCESS_EXPR" env-default:"success"`
	MoverRowsExpr     string        `env:"MOVER_ROWS_EXPR" env-default:"rows"`
	MoverMaxBodyBytes int           `env:"MOVER_MAX_BODY_BYTES" env-default:"1048576"`
	// Object mover
	MinioEndpoint      string `env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	MinioAccessKey     string `env:"MINIO_ACCESS_KEY" env-default:""`
	MinioSecretKey     string `env:"MINIO_SECRET_KEY" env-default:""`
	MinioUseSSL        bool   `env:"MINIO_USE_SSL" env-default:"false"`
	MinioBucket        string `env:"MINIO_BUCKET" env-default:"datalake"`
	MinioLandingPrefix string `env:"MINIO_LANDING_PREFIX" env-default:"landing"`
	MinioCreateBucket  bool   `env:"MINIO_CREATE_BUCKET" env-default:"true"`

	// Orchestration
	RawStage                 string `env:"RAW_STAGE" env-default:"raw"`
	EnrichedStage            string `env:"ENRICHED_STAGE" env-default:"enriched"`
	OrchestrationConcurrency int    `env:"ORCHESTRATION_CONCURRENCY" env-default:"1"`
	// RunID tags every stage log of a pass. Empty gives each pass a fresh uuid.
	RunID            string        `env:"RUN_ID" env-default:""`
	ScheduleInterval time.Duration `env:"SCHEDULE_INTERVAL" env-default:"0s"`
}

// Database returns the connection settings for the catalog database.
func (c *Config) Database() database.Config {
	return database.Config{
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		User:            c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

// Migrations returns the golang-migrate settings.
func (c *Config) Migrations() *database.MigrationConfig {
	return &database.MigrationConfig{
		MigrationFolderPath: c.DatabaseMigrationFolderPath,
		Version:             uint(c.DatabaseMigrationVersion),
		Force:               c.DatabaseMigrationForce,
		AutoRollback:        c.DatabaseMigrationAutoRollback,
	}
}

// Tracing returns the tracer provider settings.
func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		ServiceName: c.AppName,
		Exporter:    c.TraceExporter,
		SampleRatio: c.TraceSampleRatio,
		OTLP: exporters.OTLPConfig{
			Endpoint: c.OTLPEndpoint,
			Protocol: c.OTLPProtocol,
			Insecure: c.OTLPInsecure,
			Timeout:  c.OTLPTimeout,
		},
	}
}

// KafkaBrokerList splits KafkaBrokers.
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT (%d) must be 1-65535", c.Port))
	}
	if c.DatabasePort <= 0 || c.DatabasePort > 65535 {
		problems = append(problems, fmt.Sprintf("DB_PORT (%d) must be 1-65535", c.DatabasePort))
	}
	if c.DatabaseMigrationVersion < 0 {
		problems = append(problems, "DB_MIGRATION_VERSION must be non-negative")
	}
	if c.OrchestrationConcurrency <= 0 {
		problems = append(problems, "ORCHESTRATION_CONCURRENCY must be positive")
	}
	if c.ScheduleInterval < 0 {
		problems = append(problems, "SCHEDULE_INTERVAL must be non-negative")
	}
	if c.RawStage == "" || c.EnrichedStage == "" {
		problems = append(problems, "RAW_STAGE and ENRICHED_STAGE are required")
	} else if c.RawStage == c.EnrichedStage {
		problems = append(problems, "RAW_STAGE and ENRICHED_STAGE must differ")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		problems = append(problems, "TRACE_SAMPLE_RATIO must be between 0 and 1")
	}
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		problems = append(problems, "AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED is true")
	}

	switch c.Mover {
	case "noop":
	case "http":
		if c.MoverURL == "" {
			problems = append(problems, "MOVER_URL is required when MOVER is http")
		}
	case "object":
		if c.MinioEndpoint == "" || c.MinioBucket == "" {
			problems = append(problems, "MINIO_ENDPOINT and MINIO_BUCKET are required when MOVER is object")
		}
	default:
		problems = append(problems, fmt.Sprintf("MOVER %q must be one of noop, http, object", c.Mover))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
