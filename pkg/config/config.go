package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Styx    StyxConfig    `mapstructure:"styx"`
	Chain   ChainConfig   `mapstructure:"chain"`
	Stacks  StacksConfig  `mapstructure:"stacks"`
	Wallet  WalletConfig  `mapstructure:"wallet"`
	Deposit DepositConfig `mapstructure:"deposit"`
	Fees    FeesConfig    `mapstructure:"fees"`
	Worker  WorkerConfig  `mapstructure:"worker"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	GrpcPort string `mapstructure:"grpc_port"`
	Network  string `mapstructure:"network"` // mainnet, testnet, regtest
	LogLevel string `mapstructure:"log_level"`
}

type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"` // 关闭时不写 attempt journal
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// DSN gorm 用的 key=value 格式
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

// MigrateURL golang-migrate 用的 URL 格式
func (c DBConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
	// LocalCacheTTL 多级缓存里 L1 的最长存活时间
	LocalCacheTTL time.Duration `mapstructure:"local_cache_ttl"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// StyxConfig Deposit/PSBT 后端
type StyxConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	PoolID  string        `mapstructure:"pool_id"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ChainConfig 公共链上 API, 为空时按 app.network 取默认值
type ChainConfig struct {
	BlockstreamURL string        `mapstructure:"blockstream_url"`
	MempoolURL     string        `mapstructure:"mempool_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type StacksConfig struct {
	APIURL       string `mapstructure:"api_url"`
	APIKey       string `mapstructure:"api_key"`
	SBTCAssetKey string `mapstructure:"sbtc_asset_key"`
}

type WalletConfig struct {
	LeatherURL          string        `mapstructure:"leather_url"`
	XverseURL           string        `mapstructure:"xverse_url"`
	LocalStore          string        `mapstructure:"local_store"` // file, redis, memory
	LocalStorePath      string        `mapstructure:"local_store_path"`
	SessionPollInterval time.Duration `mapstructure:"session_poll_interval"`
	BalanceRefresh      string        `mapstructure:"balance_refresh"` // cron spec
}

type DepositConfig struct {
	MinSats               int64         `mapstructure:"min_sats"`
	MaxSats               int64         `mapstructure:"max_sats"`
	NetworkFeeReserveSats int64         `mapstructure:"network_fee_reserve_sats"`
	MaxAmountFallbackSats int64         `mapstructure:"max_amount_fallback_sats"`
	LockTTL               time.Duration `mapstructure:"lock_ttl"`
	PoolCacheTTL          time.Duration `mapstructure:"pool_cache_ttl"`
	EventTopic            string        `mapstructure:"event_topic"`
}

type FeesConfig struct {
	Source   string        `mapstructure:"source"` // styx or mempool
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type WorkerConfig struct {
	ReconcileEnabled bool `mapstructure:"reconcile_enabled"`
	Concurrency      int  `mapstructure:"concurrency"`
}

var Global Config

func Init() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Unable to load config, %v", err)
	}
	Global = cfg
	log.Printf("Configuration loaded successfully. Env: %s, Network: %s", Global.App.Env, Global.App.Network)
}

// Load 读取 config.yaml + 环境变量, 不修改 Global
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_port", "8080")
	v.SetDefault("app.grpc_port", "50051")
	v.SetDefault("app.network", "mainnet")

	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "deposit_user")
	v.SetDefault("db.password", "deposit_password")
	v.SetDefault("db.name", "deposit_db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.mq_type", "redis")
	v.SetDefault("redis.local_cache_ttl", 30*time.Second)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "deposit_events")

	v.SetDefault("styx.base_url", "http://localhost:3000/api")
	v.SetDefault("styx.timeout", 30*time.Second)

	v.SetDefault("chain.timeout", 15*time.Second)

	v.SetDefault("stacks.api_url", "https://api.hiro.so/extended/v1/")
	v.SetDefault("stacks.sbtc_asset_key", "SM3VDXK3WZZSA84XXFKAFAF15NNZX32CTSG82JFQ4.sbtc-token::sbtc-token")

	v.SetDefault("wallet.leather_url", "http://localhost:9301/leather")
	v.SetDefault("wallet.xverse_url", "http://localhost:9302/xverse")
	v.SetDefault("wallet.local_store", "file")
	v.SetDefault("wallet.local_store_path", "session.json")
	v.SetDefault("wallet.session_poll_interval", time.Second)
	v.SetDefault("wallet.balance_refresh", "@every 60s")

	v.SetDefault("deposit.min_sats", 10000)
	v.SetDefault("deposit.max_sats", 1000000)
	v.SetDefault("deposit.network_fee_reserve_sats", 6000)
	v.SetDefault("deposit.max_amount_fallback_sats", 600)
	v.SetDefault("deposit.lock_ttl", 10*time.Minute)
	v.SetDefault("deposit.pool_cache_ttl", time.Minute)
	v.SetDefault("deposit.event_topic", "deposit_events")

	v.SetDefault("fees.source", "styx")
	v.SetDefault("fees.cache_ttl", 30*time.Second)

	v.SetDefault("worker.reconcile_enabled", false)
	v.SetDefault("worker.concurrency", 5)
}
