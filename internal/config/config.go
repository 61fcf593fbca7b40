package config

import (
	"log"

	"github.com/spf13/viper"
)

type Provider struct {
	ClientID      string `mapstructure:"client-id"`
	ClientSecret  string `mapstructure:"client-secret"`
	TestMode      bool   `mapstructure:"test-mode"`
	Title         string `mapstructure:"title"`
	TimeoutMs     int    `mapstructure:"timeout-ms"`
	SandboxURL    string `mapstructure:"sandbox-url"`
	ProductionURL string `mapstructure:"production-url"`
}

type Merchant struct {
	Country       string `mapstructure:"country"`
	Currency      string `mapstructure:"currency"`
	MsisdnPattern string `mapstructure:"msisdn-pattern"`
	ReturnURL     string `mapstructure:"return-url"`
	CheckoutURL   string `mapstructure:"checkout-url"`
	WaitingURL    string `mapstructure:"waiting-url"`
}

type KafkaWriter struct {
	BatchSize      int `mapstructure:"batch-size"`
	BatchTimeoutMs int `mapstructure:"batch-timeout-ms"`
}

type KafkaBroker struct {
	URL string `mapstructure:"url"`
}

type KafkaTopic struct {
	PaymentEvents string `mapstructure:"payment-events"`
}

type Kafka struct {
	Writer KafkaWriter `mapstructure:"writer"`
	Broker KafkaBroker `mapstructure:"broker"`
	Topic  KafkaTopic  `mapstructure:"topic"`
}

type Server struct {
	Port string `mapstructure:"port"`
}

type Metrics struct {
	URL          string `mapstructure:"url"`
	IntervalMs   int    `mapstructure:"interval-ms"`
	CommonLabels string `mapstructure:"common-labels"`
}

type Logs struct {
	URL string `mapstructure:"url"`
}

type Config struct {
	Provider Provider `mapstructure:"provider"`
	Merchant Merchant `mapstructure:"merchant"`
	Kafka    Kafka    `mapstructure:"kafka"`
	Server   Server   `mapstructure:"server"`
	Metrics  Metrics  `mapstructure:"metrics"`
	Logs     Logs     `mapstructure:"logs"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func MustLoadConfig(path string) *Config {
	config, err := LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return config
}
