package main

import (
	"errors"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Codec    CodecConfig
	Storage  StorageConfig
	Email    EmailConfig
	Sessions SessionConfig
}

type ServerConfig struct {
	Addr     string
	BaseURL  string
	SiteName string
}

type CodecConfig struct {
	Passphrase string
	Salt       string
}

type StorageConfig struct {
	Path string
}

type EmailConfig struct {
	// Mode is "console" or "ses"
	Mode      string
	SESRegion string
	SESSender string
}

type SessionConfig struct {
	JWTSecretKey     string
	TimeoutInSeconds int
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.baseurl", "http://localhost:8080")
	v.SetDefault("server.sitename", "MailAuth Demo")
	v.SetDefault("storage.path", "./data")
	v.SetDefault("email.mode", "console")
	v.SetDefault("sessions.timeoutinseconds", 3600)

	v.SetEnvPrefix("MAILAUTH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// no config file is fine, defaults plus env apply
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if c.Codec.Passphrase == "" {
		return nil, errors.New("codec.passphrase is required")
	}
	if c.Email.Mode == "ses" && (c.Email.SESRegion == "" || c.Email.SESSender == "") {
		return nil, errors.New("email.sesregion and email.sessender are required in ses mode")
	}
	return &c, nil
}
