// 文件: pkg/config/config.go
// 配置加载
//
// 优先级: 命令行 > 环境变量 (OVN_ 前缀，. 换成 _) > 配置文件 > 默认值
// 例: OVN_DB_DSN, OVN_ENGINE_WORKERS, OVN_ENGINE_SESSION_OPEN

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrInvalid 配置校验失败
var ErrInvalid = errors.New("invalid configuration")

// Config 全部配置
type Config struct {
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Rules   RulesConfig   `mapstructure:"rules"`
	Output  OutputConfig  `mapstructure:"output"`
	Stats   StatsConfig   `mapstructure:"stats"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Log     LogConfig     `mapstructure:"log"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig Addr 为空不启用缓存
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// NATSConfig URL 为空不发事件
type NATSConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// KafkaConfig Brokers 为空不推记录流
type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers" validate:"dive,hostname_port"`
	Topic       string   `mapstructure:"topic"`
	Compression string   `mapstructure:"compression" validate:"oneof=none gzip snappy lz4 zstd"`
}

type EngineConfig struct {
	Workers            int           `mapstructure:"workers" validate:"gte=1,lte=256"`
	BarSize            time.Duration `mapstructure:"bar_size" validate:"gte=1m"`
	ChunkDays          int           `mapstructure:"chunk_days" validate:"gte=1"`
	LookbackDays       int           `mapstructure:"lookback_days" validate:"gte=0"`
	SessionOpen        string        `mapstructure:"session_open" validate:"omitempty,clock"`
	SessionClose       string        `mapstructure:"session_close" validate:"omitempty,clock"`
	MinDailyVolume     int64         `mapstructure:"min_daily_volume" validate:"gte=0"`
	MaxDaysToLastTrade int           `mapstructure:"max_days_to_last_trade" validate:"gte=0"`
	RequiredOpenStart  string        `mapstructure:"required_open_start" validate:"omitempty,clock"`
	RequiredOpenEnd    string        `mapstructure:"required_open_end" validate:"omitempty,clock"`
	RunIDNode          int64         `mapstructure:"run_id_node" validate:"gte=0,lte=1023"`
}

type RulesConfig struct {
	OverrideFile string `mapstructure:"override_file"`
}

type OutputConfig struct {
	Format string `mapstructure:"format" validate:"oneof=csv xlsx parquet"`
	Path   string `mapstructure:"path"`
}

type StatsConfig struct {
	Bucket       string `mapstructure:"bucket" validate:"oneof=day week month all"`
	Metrics      string `mapstructure:"metrics" validate:"required"`
	Kind         string `mapstructure:"kind" validate:"oneof=full intraday overnight overnight_business overnight_weekend"`
	MinSamples   int    `mapstructure:"min_samples" validate:"gte=0"`
	ExcludeRolls bool   `mapstructure:"exclude_rolls"`
	MinRows      int64  `mapstructure:"min_rows" validate:"gte=1"`
	OutDir       string `mapstructure:"out_dir"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type WatchConfig struct {
	Schedule    string `mapstructure:"schedule"`
	RebuildDays int    `mapstructure:"rebuild_days" validate:"gte=1"`
	RelinkDays  int    `mapstructure:"relink_days" validate:"gte=1"`
	Queue       string `mapstructure:"queue"`

	// KafkaTopic 非空时同时从 Kafka 接收入库通知
	KafkaTopic string `mapstructure:"kafka_topic"`
	KafkaGroup string `mapstructure:"kafka_group"`
}

type LogConfig struct {
	Level    string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Encoding string `mapstructure:"encoding" validate:"oneof=console json"`
}

// =============================================================================
// 加载
// =============================================================================

// Load path 为空时只用环境变量和默认值
func Load(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("OVN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
		}
	}
	return v, nil
}

// Decode 解析并校验；命令行覆盖项应在调用前 v.Set 进去
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.dsn", "root:root@tcp(127.0.0.1:3306)/overnight?charset=utf8mb4&parseTime=True&loc=UTC")
	v.SetDefault("db.max_open_conns", 16)
	v.SetDefault("db.max_idle_conns", 4)
	v.SetDefault("db.conn_max_lifetime", "30m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "10m")

	v.SetDefault("nats.url", "")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "overnight.series.records")
	v.SetDefault("kafka.compression", "snappy")

	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.bar_size", "5m")
	v.SetDefault("engine.chunk_days", 90)
	v.SetDefault("engine.lookback_days", 10)
	v.SetDefault("engine.session_open", "")
	v.SetDefault("engine.session_close", "")
	v.SetDefault("engine.min_daily_volume", 0)
	v.SetDefault("engine.max_days_to_last_trade", 0)
	v.SetDefault("engine.required_open_start", "")
	v.SetDefault("engine.required_open_end", "")
	v.SetDefault("engine.run_id_node", 0)

	v.SetDefault("rules.override_file", "")

	v.SetDefault("output.format", "csv")
	v.SetDefault("output.path", "")

	v.SetDefault("stats.bucket", "all")
	v.SetDefault("stats.metrics", "mean,median,std,count")
	v.SetDefault("stats.kind", "overnight")
	v.SetDefault("stats.min_samples", 1)
	v.SetDefault("stats.exclude_rolls", false)
	v.SetDefault("stats.min_rows", 50)
	v.SetDefault("stats.out_dir", ".")

	v.SetDefault("metrics.addr", ":9108")

	v.SetDefault("watch.schedule", "0 30 18 * * 1-5")
	v.SetDefault("watch.rebuild_days", 30)
	v.SetDefault("watch.relink_days", 10)
	v.SetDefault("watch.queue", "overnight-watch")
	v.SetDefault("watch.kafka_topic", "")
	v.SetDefault("watch.kafka_group", "overnight-watch")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
}

// =============================================================================
// 校验
// =============================================================================

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("15:04", fl.Field().String())
		return err == nil
	})
	return v
}

// Validate 结构体校验，错误包装 ErrInvalid
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
