package infra

import (
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath config.yml 預設路徑
const DefaultConfigPath = "config.yml"

// 儲存層驅動
const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

type Config struct {
	App struct {
		AppVersion string `yaml:"app_version"`
		Port       int    `yaml:"port"`
	} `yaml:"app"`
	Store struct {
		Driver string `yaml:"driver"` // mongo 或 memory
	} `yaml:"store"`
	MongoDB struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongodb"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	RabbitMQ struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		Queue         string `yaml:"queue"`          // CDR 訊息主題
		ConsumerGroup string `yaml:"consumer_group"` // 同組 consumer 共享隊列
		Prefetch      int    `yaml:"prefetch"`
	} `yaml:"rabbitmq"`
	Auth struct {
		Enabled        bool     `yaml:"enabled"`
		SecretKey      string   `yaml:"secret_key"`
		AllowedIssuers []string `yaml:"allowed_issuers"`
	} `yaml:"auth"`
	Otel struct {
		Endpoint string `yaml:"endpoint"` // 空值時使用 stdout exporter
	} `yaml:"otel"`
	Loader struct {
		Directory       string `yaml:"directory"`
		IntervalSeconds int    `yaml:"interval_seconds"`
		Strict          *bool  `yaml:"strict"`
	} `yaml:"loader"`
}

// StrictValidation 是否跳過驗證失敗的紀錄，未設定時為 true
func (c Config) StrictValidation() bool {
	return c.Loader.Strict == nil || *c.Loader.Strict
}

var AppConfig Config

// LoadConfig 從預設路徑讀取設定
func LoadConfig() error {
	return LoadConfigFrom(DefaultConfigPath)
}

// LoadConfigFrom 從指定路徑讀取設定到 AppConfig
func LoadConfigFrom(path string) error {
	cfg, err := ReadConfig(path)
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// ReadConfig decodes the YAML file at path and fills in defaults for missing values.
func ReadConfig(path string) (Config, error) {
	var cfg Config

	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 8080
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverMongo
	}
	if cfg.MongoDB.Database == "" {
		cfg.MongoDB.Database = "cdr"
	}
	if cfg.RabbitMQ.Queue == "" {
		cfg.RabbitMQ.Queue = QueueNameCdrRecords.String()
	}
	if cfg.RabbitMQ.ConsumerGroup == "" {
		cfg.RabbitMQ.ConsumerGroup = "cdr-group"
	}
	if cfg.RabbitMQ.Prefetch <= 0 {
		cfg.RabbitMQ.Prefetch = 1
	}
	if cfg.Loader.Directory == "" {
		cfg.Loader.Directory = "data"
	}
	if cfg.Loader.IntervalSeconds <= 0 {
		cfg.Loader.IntervalSeconds = 60
	}
}
