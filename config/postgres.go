package config

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// PostgresConfig defines the connection to the database holding recorded klines.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
	CreateDB bool   `mapstructure:"create_db"` // create the database on startup if missing

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	SSM SSMParams `mapstructure:"ssm"`
}

// SSMParams names the Parameter Store entries holding prod credentials.
type SSMParams struct {
	HostParam     string `mapstructure:"host_param"`
	UserParam     string `mapstructure:"user_param"`
	PasswordParam string `mapstructure:"password_param"`
}

// ParameterGetter resolves a named secret. The prod implementation is AWS SSM.
type ParameterGetter interface {
	GetParameter(ctx context.Context, name string, decrypt bool) (string, error)
}

// DSN builds the connection string. In "prod" the host, user and password are
// read from Parameter Store through params; elsewhere the config values are used.
func (cfg *PostgresConfig) DSN(ctx context.Context, env string, params ParameterGetter) (string, error) {
	host, user, password := cfg.Host, cfg.User, cfg.Password

	if env == "prod" {
		if params == nil {
			return "", fmt.Errorf("prod DSN requires a parameter store")
		}
		var err error
		if host, err = params.GetParameter(ctx, cfg.SSM.HostParam, true); err != nil {
			return "", fmt.Errorf("resolve db host: %w", err)
		}
		if user, err = params.GetParameter(ctx, cfg.SSM.UserParam, true); err != nil {
			return "", fmt.Errorf("resolve db user: %w", err)
		}
		if password, err = params.GetParameter(ctx, cfg.SSM.PasswordParam, true); err != nil {
			return "", fmt.Errorf("resolve db password: %w", err)
		}
	}

	return cfg.dsnFor(host, user, password, cfg.DBName), nil
}

// AdminDSN points at the default "postgres" database, used to create DBName.
func (cfg *PostgresConfig) AdminDSN() string {
	return cfg.dsnFor(cfg.Host, cfg.User, cfg.Password, "postgres")
}

func (cfg *PostgresConfig) dsnFor(host, user, password, dbname string) string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbname, cfg.SSLMode,
	)
	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}
	return dsn
}

// SSMStore reads parameters from AWS Systems Manager Parameter Store.
type SSMStore struct {
	client *ssm.Client
}

// NewSSMStore loads the default AWS configuration (env, shared files, IMDS).
func NewSSMStore(ctx context.Context) (*SSMStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SSMStore{client: ssm.NewFromConfig(awsCfg)}, nil
}

func (s *SSMStore) GetParameter(ctx context.Context, name string, decrypt bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &decrypt,
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s has no value", name)
	}
	return *result.Parameter.Value, nil
}
