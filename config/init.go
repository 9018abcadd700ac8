package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/mailvault/mailvault/internal/logger"
	"github.com/mailvault/mailvault/internal/tracing"
)

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:        &AppConfig{},
		DatabaseConfig:   &DatabaseConfig{},
		ProcessorConfig:  &ProcessorConfig{},
		ExtractionConfig: &ExtractionConfig{},
		RetentionConfig:  &RetentionConfig{},
		SMTPConfig:       &SMTPConfig{},
		Logger:           &logger.Config{},
		Tracing:          &tracing.JaegerConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
