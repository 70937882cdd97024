package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type StructuredJSONConfig struct {
	Migrate         bool   `json:"migrate"`
	Debug           bool   `json:"debug"`
	DefaultLanguage string `json:"default_language"`

	Auth struct {
		PasswordHashKey string   `json:"password_hash_key"`
		TokenSignKey    string   `json:"token_sign_key"`
		TokenIssuer     string   `json:"token_issuer"`
		TokenDuration   Duration `json:"token_duration"`
	} `json:"auth,omitempty"`

	Database struct {
		Driver   string `json:"driver"`
		Host     string `json:"host"`
		Port     int    `json:"port"`
		Name     string `json:"name"`
		User     string `json:"user"`
		Password string `json:"password"`
		PoolSize int    `json:"pool_size"`
		DSN      string `json:"dsn"`
	} `json:"database,omitempty"`

	Server struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"server,omitempty"`

	Sync struct {
		RepositoryUUID  string   `json:"repository_uuid"`
		RepositoryName  string   `json:"repository_name"`
		SchedulerPeriod Duration `json:"scheduler_period"`
		MaxRetries      int      `json:"max_retries"`
		Backoff         Duration `json:"backoff"`
	} `json:"sync,omitempty"`

	Audit struct {
		ReadEnabled  bool `json:"read_enabled"`
		WriteEnabled bool `json:"write_enabled"`
	} `json:"audit,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Migrate:         jsonCfg.Migrate,
		Debug:           jsonCfg.Debug,
		DefaultLanguage: jsonCfg.DefaultLanguage,
		Auth: Auth{
			PasswordHashKey: jsonCfg.Auth.PasswordHashKey,
			TokenSignKey:    jsonCfg.Auth.TokenSignKey,
			TokenIssuer:     jsonCfg.Auth.TokenIssuer,
			TokenDuration:   time.Duration(jsonCfg.Auth.TokenDuration),
		},
		Database: Database{
			Driver:   jsonCfg.Database.Driver,
			Host:     jsonCfg.Database.Host,
			Port:     jsonCfg.Database.Port,
			Name:     jsonCfg.Database.Name,
			User:     jsonCfg.Database.User,
			Password: jsonCfg.Database.Password,
			PoolSize: jsonCfg.Database.PoolSize,
			DSN:      jsonCfg.Database.DSN,
		},
		Server: Server{
			HTTPAddress:    jsonCfg.Server.HTTPAddress,
			RequestTimeout: time.Duration(jsonCfg.Server.RequestTimeout),
		},
		Sync: Sync{
			RepositoryUUID:  jsonCfg.Sync.RepositoryUUID,
			RepositoryName:  jsonCfg.Sync.RepositoryName,
			SchedulerPeriod: time.Duration(jsonCfg.Sync.SchedulerPeriod),
			MaxRetries:      jsonCfg.Sync.MaxRetries,
			Backoff:         time.Duration(jsonCfg.Sync.Backoff),
		},
		Audit: Audit{
			ReadEnabled:  jsonCfg.Audit.ReadEnabled,
			WriteEnabled: jsonCfg.Audit.WriteEnabled,
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
