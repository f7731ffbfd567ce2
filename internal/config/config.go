package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hackhub/submissions-api/internal/logger"
	"github.com/hackhub/submissions-api/internal/validator"
)

type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentProduction  Environment = "production"
)

type StorageBackend string

const (
	StorageBackendAzure StorageBackend = "azure"
	StorageBackendS3    StorageBackend = "s3"
)

type APIKeyPermissions struct {
	Admin       bool `mapstructure:"admin"       json:"admin"`
	Participant bool `mapstructure:"participant" json:"participant"`
}

type APIKey struct {
	Active      *bool             `mapstructure:"active"      json:"active"      validate:"required"`
	Token       string            `mapstructure:"token"       json:"token"       validate:"required"`
	Permissions APIKeyPermissions `mapstructure:"permissions" json:"permissions"`
}

// An API key holder, usually an operator tool or the grading service
type Account struct {
	ID     string `mapstructure:"id"      json:"id"      validate:"required,uuid_rfc4122"`
	Note   string `mapstructure:"note"    json:"note"    validate:"required"`
	APIKey APIKey `mapstructure:"api_key" json:"api_key" validate:"required"`
}

type AuthConfig struct {
	// HMAC secret shared with the service issuing participant tokens
	JWTSecret *string `mapstructure:"jwt_secret"`
}

type PostgresConfig struct {
	User               string        `validate:"required"`
	Password           string        `validate:"required"`
	Host               string        `validate:"required"`
	Database           string        `validate:"required"`
	MaxIdleConnections int           `validate:"required" mapstructure:"max_idle_connections"`
	MaxOpenConnections int           `validate:"required" mapstructure:"max_open_connections"`
	ConnectionTTL      time.Duration `validate:"required" mapstructure:"connection_ttl"`
	Port               int16         `validate:"required"`
}

type AzureStorageConfig struct {
	AccountName string `mapstructure:"account_name" validate:"required"`
	AccountKey  string `mapstructure:"account_key"  validate:"required"`
	BlobURL     string `mapstructure:"blob_url"     validate:"required"`
	Container   string `mapstructure:"container"    validate:"required"`
	// creates the container at startup, used against azurite
	Dev bool `mapstructure:"dev"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"          validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"     validate:"required"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required"`
	BucketName      string `mapstructure:"bucket_name"       validate:"required"`
	SSLEnabled      bool   `mapstructure:"ssl_enabled"`
}

type StorageConfig struct {
	Azure          *AzureStorageConfig `mapstructure:"azure"`
	S3             *S3Config           `mapstructure:"s3"`
	Backend        StorageBackend      `mapstructure:"backend"          validate:"required,oneof=azure s3"`
	Folder         string              `mapstructure:"folder"           validate:"required"`
	DownloadURLTTL time.Duration       `mapstructure:"download_url_ttl" validate:"required"`
	UploadTimeout  time.Duration       `mapstructure:"upload_timeout"   validate:"required"`
}

type ArchiveConfig struct {
	S3      *S3Config `mapstructure:"s3"`
	Enabled bool      `mapstructure:"enabled"`
}

type EvaluationConfig struct {
	// Local path of the ground-truth file, overwritten when fetched from a remote location
	SolutionPath string `mapstructure:"solution_path" validate:"required"`
	// Optional http(s) location of the ground-truth file
	SolutionURL *string `mapstructure:"solution_url"`
	// Optional blob name of the ground-truth file in the azure storage container
	SolutionBlob *string `mapstructure:"solution_blob"`
	Column       string  `mapstructure:"column"        validate:"required"`
}

type UploadsConfig struct {
	TempDir           string   `mapstructure:"temp_dir"           validate:"required"`
	AllowedExtensions []string `mapstructure:"allowed_extensions" validate:"required,min=1,dive,file_extension"`
	MaxBytes          string   `mapstructure:"max_bytes"          validate:"required"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type QueueConfig struct {
	AccountName string `mapstructure:"account_name" validate:"required"`
	AccountKey  string `mapstructure:"account_key"  validate:"required"`
	URL         string `mapstructure:"url"          validate:"required"`
	Reviews     string `mapstructure:"reviews"      validate:"required"`
	Scores      string `mapstructure:"scores"       validate:"required"`
}

type SlogConfig struct {
	Level int `mapstructure:"level"`
}

type GormLogConfig struct {
	Level        int  `mapstructure:"level"`
	TraceQueries bool `mapstructure:"trace_queries"`
}

type LoggingConfig struct {
	Gorm    GormLogConfig `mapstructure:"gorm"`
	App     SlogConfig    `mapstructure:"app"`
	UseOTLP bool          `mapstructure:"use_otlp"`
	// Share of traces recorded, 1 keeps every trace
	TraceSampleRatio float64 `mapstructure:"trace_sample_ratio" validate:"gte=0,lte=1"`
}

type RateLimitConfig struct {
	RedisHost       string `mapstructure:"redis_host"`
	GlobalPerMinute int64  `mapstructure:"global_per_minute"`
	SubmitPerMinute int64  `mapstructure:"submit_per_minute"`
	FailOpen        bool   `mapstructure:"fail_open"`
}

// See submissionsapi.example.yaml for an example config
type Config struct {
	Postgres             *PostgresConfig   `mapstructure:"postgres"               validate:"required"`
	Logging              *LoggingConfig    `mapstructure:"logging"                validate:"required"`
	Storage              *StorageConfig    `mapstructure:"storage"                validate:"required"`
	Archive              *ArchiveConfig    `mapstructure:"archive"`
	Evaluation           *EvaluationConfig `mapstructure:"evaluation"             validate:"required"`
	Uploads              *UploadsConfig    `mapstructure:"uploads"                validate:"required"`
	Auth                 *AuthConfig       `mapstructure:"auth"`
	CORS                 *CORSConfig       `mapstructure:"cors"`
	Queues               *QueueConfig      `mapstructure:"queues"`
	RateLimit            *RateLimitConfig  `mapstructure:"ratelimit"`
	Environment          Environment       `mapstructure:"environment"            validate:"required,oneof=development production"`
	ListenAddress        string            `mapstructure:"listen_address"         validate:"required"`
	Accounts             []Account         `mapstructure:"accounts"               validate:"dive"`
	GracefulShutdownSecs int64             `mapstructure:"graceful_shutdown_secs"`
}

const (
	AppLogLevel                string = "logging.app.level"
	ArchiveEnabled             string = "archive.enabled"
	ArchiveS3AccessKeyID       string = "archive.s3.access_key_id"
	ArchiveS3SecretAccessKey   string = "archive.s3.secret_access_key" // #nosec
	AuthJWTSecret              string = "auth.jwt_secret" // #nosec
	CORSAllowOrigins           string = "cors.allow_origins"
	EnvPrefix                  string = "submissionsapi"
	EnvironmentKey             string = "environment"
	EvaluationColumn           string = "evaluation.column"
	EvaluationSolutionPath     string = "evaluation.solution_path"
	GlobalPerMinute            string = "ratelimit.global_per_minute"
	GormLogLevel               string = "logging.gorm.level"
	GormTraceQueries           string = "logging.gorm.trace_queries"
	GracefulShutdownSecs       string = "graceful_shutdown_secs"
	ListenAddress              string = "listen_address"
	PostgresDatabase           string = "postgres.database"
	PostgresHost               string = "postgres.host"
	PostgresPassword           string = "postgres.password"
	PostgresPort               string = "postgres.port"
	PostgresUser               string = "postgres.user"
	PostgresMaxIdleConnections string = "postgres.max_idle_connections"
	PostgresMaxOpenConnections string = "postgres.max_open_connections"
	PostgresConnectonTTL       string = "postgres.connection_ttl"
	QueuesAccountKey           string = "queues.account_key"
	RateLimitFailOpen          string = "ratelimit.fail_open"
	RedisHost                  string = "ratelimit.redis_host"
	StorageAzureAccountKey     string = "storage.azure.account_key"
	StorageBackendKey          string = "storage.backend"
	StorageDownloadURLTTL      string = "storage.download_url_ttl"
	StorageFolder              string = "storage.folder"
	StorageS3AccessKeyID       string = "storage.s3.access_key_id"
	StorageS3SecretAccessKey   string = "storage.s3.secret_access_key" // #nosec
	StorageUploadTimeout       string = "storage.upload_timeout"
	SubmitPerMinute            string = "ratelimit.submit_per_minute"
	TraceSampleRatio           string = "logging.trace_sample_ratio"
	UploadsAllowedExtensions   string = "uploads.allowed_extensions"
	UploadsMaxBytes            string = "uploads.max_bytes"
	UploadsTempDir             string = "uploads.temp_dir"
	UseOTLP                    string = "logging.use_otlp"
)

// Origins accepted by default, matches the deployed frontends
var DefaultAllowOrigins = []string{
	"http://localhost:5173",
	"https://elec-frontend.vercel.app",
	"https://p0-v2-frontend.onrender.com",
}

var DefaultAllowedExtensions = []string{".csv", ".zip", ".pdf", ".jpg", ".png"}

var ErrStorageBackendConfig = errors.New("storage backend is missing its configuration")

var configReady = false
var config Config

func GetConfig() (*Config, error) {
	if configReady {
		logger.Logger.Debug("returning already-loaded config")
		return &config, nil
	}
	logger.Logger.Info("loading config")

	v := viper.New()

	v.SetConfigName("submissionsapi")

	v.AddConfigPath("/etc/submissionsapi/")
	v.AddConfigPath(".")

	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.AutomaticEnv()

	// workaround for https://github.com/spf13/viper/issues/761
	// bind env vars explicitly so they unmarshal into the nested struct
	for _, key := range []string{
		PostgresPassword,
		StorageAzureAccountKey,
		StorageS3AccessKeyID,
		StorageS3SecretAccessKey,
		ArchiveS3AccessKeyID,
		ArchiveS3SecretAccessKey,
		QueuesAccountKey,
		AuthJWTSecret,
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	setDefaults(v)

	err := v.ReadInConfig()
	if err != nil {
		// ignore config file not found to allow pure env config
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	if err != nil {
		configReady = false
		return nil, err
	}

	if err = config.Validate(); err != nil {
		configReady = false
		return nil, err
	}

	configReady = true
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(EnvironmentKey, string(EnvironmentDevelopment))
	v.SetDefault(ListenAddress, "[::]:6010")
	v.SetDefault(PostgresHost, "localhost")
	v.SetDefault(PostgresPort, 5432)
	v.SetDefault(PostgresMaxIdleConnections, 2)
	v.SetDefault(PostgresMaxOpenConnections, 10)
	v.SetDefault(PostgresConnectonTTL, 10*time.Minute)
	v.SetDefault(GormLogLevel, int(slog.LevelDebug))
	v.SetDefault(GormTraceQueries, false)
	v.SetDefault(AppLogLevel, int(slog.LevelDebug))
	v.SetDefault(UseOTLP, false)
	v.SetDefault(TraceSampleRatio, 1.0)

	v.SetDefault(StorageBackendKey, string(StorageBackendAzure))
	v.SetDefault(StorageFolder, "submissions")
	v.SetDefault(StorageDownloadURLTTL, 7*24*time.Hour)
	v.SetDefault(StorageUploadTimeout, 2*time.Minute)

	v.SetDefault(ArchiveEnabled, false)

	v.SetDefault(EvaluationSolutionPath, "solutions/Evaluation_set.csv")
	v.SetDefault(EvaluationColumn, "Language")

	v.SetDefault(UploadsTempDir, "/tmp")
	v.SetDefault(UploadsAllowedExtensions, DefaultAllowedExtensions)
	v.SetDefault(UploadsMaxBytes, "50M")

	v.SetDefault(CORSAllowOrigins, DefaultAllowOrigins)

	v.SetDefault(RedisHost, "localhost")
	v.SetDefault(GlobalPerMinute, 0)
	v.SetDefault(SubmitPerMinute, 0)
	v.SetDefault(RateLimitFailOpen, true)

	v.SetDefault(GracefulShutdownSecs, 30)
}

// Checks struct tags and the cross field rules the tags cannot express
func (c *Config) Validate() error {
	valid := validator.Create()
	if err := valid.Validate(c); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case StorageBackendAzure:
		if c.Storage.Azure == nil {
			return fmt.Errorf("%w: %s", ErrStorageBackendConfig, c.Storage.Backend)
		}
	case StorageBackendS3:
		if c.Storage.S3 == nil {
			return fmt.Errorf("%w: %s", ErrStorageBackendConfig, c.Storage.Backend)
		}
	}

	if c.Archive != nil && c.Archive.Enabled && c.Archive.S3 == nil {
		return errors.New("archive is enabled without an s3 configuration")
	}

	return nil
}

// Error details are only exposed to clients outside of production
func (c *Config) DetailedErrors() bool {
	return c.Environment != EnvironmentProduction
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s",
		url.QueryEscape(c.Postgres.User),
		url.QueryEscape(c.Postgres.Password),
		c.Postgres.Host, c.Postgres.Port,
		url.QueryEscape(c.Postgres.Database),
	)
}
