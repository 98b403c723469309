package main

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// KV backend: "rest" (serverless REST store), "redis" or "memory".
	KVBackend     string `yaml:"kvBackend"`
	KVRestURL     string `yaml:"kvRestUrl"`
	KVRestToken   string `yaml:"kvRestToken"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDb"`

	HTTPTimeoutMs   int  `yaml:"httpTimeoutMs"`
	VerifySignature bool `yaml:"verifySignature"`
	DedupTTLSeconds int  `yaml:"dedupTtlSeconds"`

	MQTTEnabled  bool   `yaml:"mqttEnabled"`
	MQTTHost     string `yaml:"mqttHost"`
	MQTTPort     int    `yaml:"mqttPort"`
	MQTTUser     string `yaml:"mqttUser"`
	MQTTPassword string `yaml:"mqttPassword"`
	MQTTTopic    string `yaml:"mqttTopic"`

	InfluxEnabled bool   `yaml:"influxEnabled"`
	InfluxURL     string `yaml:"influxUrl"`
	InfluxToken   string `yaml:"influxToken"`
	InfluxOrg     string `yaml:"influxOrg"`
	InfluxBucket  string `yaml:"influxBucket"`
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

// loadConfig builds the config from the environment, with an optional YAML
// file (CONFIG_FILE) layered underneath. Environment always wins.
func loadConfig() (Config, error) {
	cfg := Config{
		Port:            "8080",
		LogLevel:        "info",
		KVBackend:       "rest",
		HTTPTimeoutMs:   10000,
		VerifySignature: true,
		MQTTPort:        1883,
		MQTTTopic:       "event/pumpDecision",
		InfluxURL:       "http://localhost:8086",
		InfluxOrg:       "garden",
		InfluxBucket:    "bridge",
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Port = getenv("PORT", cfg.Port)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)

	cfg.KVBackend = getenv("KV_BACKEND", cfg.KVBackend)
	cfg.KVRestURL = getenv("KV_REST_API_URL", cfg.KVRestURL)
	cfg.KVRestToken = getenv("KV_REST_API_TOKEN", cfg.KVRestToken)
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getenv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getenvInt("REDIS_DB", cfg.RedisDB)

	cfg.HTTPTimeoutMs = getenvInt("HTTP_TIMEOUT_MS", cfg.HTTPTimeoutMs)
	cfg.VerifySignature = getenvBool("VERIFY_SIGNATURE", cfg.VerifySignature)
	cfg.DedupTTLSeconds = getenvInt("DEDUP_TTL_SECONDS", cfg.DedupTTLSeconds)

	cfg.MQTTEnabled = getenvBool("MQTT_ENABLED", cfg.MQTTEnabled)
	cfg.MQTTHost = getenv("MQTT_HOST", cfg.MQTTHost)
	cfg.MQTTPort = getenvInt("MQTT_PORT", cfg.MQTTPort)
	cfg.MQTTUser = getenv("MQTT_USER", cfg.MQTTUser)
	cfg.MQTTPassword = getenv("MQTT_PASSWORD", cfg.MQTTPassword)
	cfg.MQTTTopic = getenv("MQTT_TOPIC", cfg.MQTTTopic)

	cfg.InfluxEnabled = getenvBool("INFLUX_ENABLED", cfg.InfluxEnabled)
	cfg.InfluxURL = getenv("INFLUX_URL", cfg.InfluxURL)
	cfg.InfluxToken = getenv("INFLUX_TOKEN", cfg.InfluxToken)
	cfg.InfluxOrg = getenv("INFLUX_ORG", cfg.InfluxOrg)
	cfg.InfluxBucket = getenv("INFLUX_BUCKET", cfg.InfluxBucket)

	return cfg, nil
}

func (c Config) httpTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMs) * time.Millisecond
}
