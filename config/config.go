package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config structure
type Config struct {
	Server          ServerConfig
	DatabaseCluster DatabaseClusterConfig `mapstructure:"database_cluster"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	Unleash         UnleashConfig         `mapstructure:"unleash"`
	Network         NetworkConfig         `mapstructure:"network"`
	Crons           Crons                 `mapstructure:"crons"`
	// Roles maps a role alias to the list of permissions granted to it
	Roles map[string][]string `mapstructure:"roles"`
}

// ServerConfig structure
type ServerConfig struct {
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	API        APIConfig        `mapstructure:"api"`
	Debug      DebugConfig      `mapstructure:"debug"`
	Internal   InternalConfig   `mapstructure:"internal"`
}

// APIConfig structure
type APIConfig struct {
	Port           int
	KeepAlive      bool   `mapstructure:"keep_alive"`
	JWTTokenSecret string `mapstructure:"jwt_token_secret"`
}

// MonitoringConfig structure
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DebugConfig structure
type DebugConfig struct {
	AllowedIPs string `mapstructure:"allowed_ips"`
}

// InternalConfig restricts the write endpoints used by the other platform services
type InternalConfig struct {
	AllowedIPs string `mapstructure:"allowed_ips"`
}

// DatabaseClusterConfig structure
type DatabaseClusterConfig struct {
	Writer DatabaseConfig `mapstructure:"writer"`
	Reader DatabaseConfig `mapstructure:"reader"`
}

// DatabaseConfig structure
type DatabaseConfig struct {
	Type            string // postgres
	Host            string
	Username        string
	Password        string
	Name            string
	SSLmode         string `mapstructure:"sslmode"`
	ApplicationName string `mapstructure:"application_name"`
	Port            int
	MaxOpenConns    int `mapstructure:"max_open_conns"`
	MaxIdleConns    int `mapstructure:"max_idle_conns"`
}

// DSN for the postgres driver
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=%s",
		c.Host, c.Port, c.Username, c.Password, c.Name, c.SSLmode, c.ApplicationName)
}

// URI used by the migrations
func (c DatabaseConfig) URI() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.Username, c.Password, c.Host, c.Port, c.Name, c.SSLmode)
}

// RedisConfig structure
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	PoolSize    int           `mapstructure:"pool_size"`
	OverviewTTL time.Duration `mapstructure:"overview_ttl"`
}

// KafkaConfig structure
type KafkaConfig struct {
	Brokers []string          `mapstructure:"brokers"`
	Topic   string            `mapstructure:"topic"`
	UseTLS  bool              `mapstructure:"use_tls"`
	Writer  KafkaWriterConfig `mapstructure:"writer"`
}

// KafkaWriterConfig structure
type KafkaWriterConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	BatchBytes   int64         `mapstructure:"batch_bytes"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	Async        bool          `mapstructure:"async"`
}

// UnleashConfig structure
type UnleashConfig struct {
	URL        string `mapstructure:"url"`
	AppName    string `mapstructure:"app_name"`
	InstanceID string `mapstructure:"instance_id"`
}

// NetworkConfig holds the limits of the referral network engine
type NetworkConfig struct {
	// Storage driver: postgres or memory
	Storage string `mapstructure:"storage"`
	// MaxSupportedLevel is the deepest relative level reported by overview and team endpoints
	MaxSupportedLevel int `mapstructure:"max_supported_level"`
	// MaxTreeDepth is the deepest depth accepted by the tree endpoints
	MaxTreeDepth     int `mapstructure:"max_tree_depth"`
	DefaultTreeDepth int `mapstructure:"default_tree_depth"`
	// BranchingCap together with the depth bounds the number of nodes of a tree response
	BranchingCap     int           `mapstructure:"branching_cap"`
	InsertRetries    int           `mapstructure:"insert_retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	DefaultPageLimit int           `mapstructure:"default_page_limit"`
	MaxPageLimit     int           `mapstructure:"max_page_limit"`

	// OverviewLoadTimeout bounds a shared overview load, independent of the callers waiting on it
	OverviewLoadTimeout time.Duration   `mapstructure:"overview_load_timeout"`
	RateLimit           RateLimitConfig `mapstructure:"rate_limit"`
}

// NodeBudget returns the maximum number of nodes a tree of the given depth may hold
func (c NetworkConfig) NodeBudget(depth int) int {
	return 1 + c.BranchingCap*depth
}

// RateLimitConfig structure
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`

	// IdleTTL drops the bucket of a caller that made no request for this long
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

// Crons - mapping of ids to execution frequency
type Crons map[string]string

// LoadConfig Load server configuration from the yaml file
func LoadConfig(viperConf *viper.Viper) Config {
	config, err := DecodeConfig(viperConf)
	if err != nil {
		log.Fatal().Err(err).Msg("Unable to decode config into struct")
	}
	return config
}

// DecodeConfig godoc
func DecodeConfig(viperConf *viper.Viper) (Config, error) {
	var config Config
	err := viperConf.Unmarshal(&config)
	return config, err
}

// OpenConfig godoc
func OpenConfig(file string) {
	// Don't forget to read config either from cfgFile, from current directory or from home directory!
	if file != "" {
		// Use config file from the flag.
		viper.SetConfigFile(file)
	}

	viper.SetConfigType("yaml")
	viper.SetConfigName(".config")
	viper.AddConfigPath(".")                   // First try to load the config from the current directory
	viper.AddConfigPath("$HOME")               // Then try to load it from the HOME directory
	viper.AddConfigPath("/etc/genealogy_api/") // As a last resort try to load it from /etc/
	viper.SetEnvPrefix("CFG")
	viper.AutomaticEnv()
	SetDefaultVariables(viper.GetViper())

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {             // Handle errors reading the config file
		log.Fatal().Err(err).Msg("Unable to read configuration file")
	}
}

// SetDefaultVariables godoc
func SetDefaultVariables(v *viper.Viper) {
	v.SetDefault("server.api.port", 8080)
	v.SetDefault("server.monitoring.port", 9090)

	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.overview_ttl", 30*time.Second)
	v.SetDefault("kafka.topic", "network.events")
	v.SetDefault("kafka.writer.batch_size", 100)
	v.SetDefault("kafka.writer.batch_timeout", 50*time.Millisecond)
	v.SetDefault("unleash.app_name", "genealogy_api")

	v.SetDefault("network.storage", "postgres")
	v.SetDefault("network.max_supported_level", 6)
	v.SetDefault("network.max_tree_depth", 6)
	v.SetDefault("network.default_tree_depth", 2)
	v.SetDefault("network.branching_cap", 50)
	v.SetDefault("network.insert_retries", 3)
	v.SetDefault("network.retry_backoff", 20*time.Millisecond)
	v.SetDefault("network.default_page_limit", 10)
	v.SetDefault("network.max_page_limit", 100)
	v.SetDefault("network.rate_limit.rps", 10)
	v.SetDefault("network.rate_limit.burst", 20)
	v.SetDefault("network.rate_limit.idle_ttl", 10*time.Minute)
	v.SetDefault("network.overview_load_timeout", 10*time.Second)

	v.SetDefault("crons.recompute_earnings", "@every 5m")

	v.SetDefault("roles", map[string][]string{
		"member":  {"network.view"},
		"support": {"network.view", "network.view.any"},
		"admin":   {"network.view", "network.view.any", "network.write", "network.root.create"},
		"service": {"network.write", "network.root.create"},
	})
}
