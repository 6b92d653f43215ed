package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Origin       string        `yaml:"origin"`
	Port         int           `yaml:"port"`
	Provider     string        `yaml:"provider"`
	DBFile       string        `yaml:"dbFile"`
	RedisAddr    string        `yaml:"redisAddr"`
	QueueDBFile  string        `yaml:"queueDbFile"`
	CachePrefix  string        `yaml:"cachePrefix"`
	CacheVersion string        `yaml:"cacheVersion"`
	APIPrefix    string        `yaml:"apiPrefix"`
	MediaPrefix  string        `yaml:"mediaPrefix"`
	SyncEndpoint string        `yaml:"syncEndpoint"`
	SyncInterval time.Duration `yaml:"syncInterval"`
	Precache     []string      `yaml:"precache"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
