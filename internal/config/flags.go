package config

import (
	"errors"
	"flag"
	"net"
	"strconv"
	"strings"
	"time"
)

// NetAddress holds structured network address data for host and port.
// It implements the flag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-a server address in format [host]:[port]
//	-d database DSN
//	-driver database driver (pgx or sqlite3)
//	-migrate apply pending schema migrations at startup
//	-debug enable verbose diagnostics
//	-lang default language code
//	-c/-config json file path with configs
//	-password-hash-key password hash key
//	-token-sign-key token signing key
//	-token-issuer token issuer name
//	-token-duration token duration (e.g., "1h", "30m")
//	-request-timeout request timeout (e.g., "30s", "1m")
//	-repository-uuid local repository uuid announced to sync peers
//	-repository-name local repository name announced to sync peers
//	-sync-period sync scheduler tick interval
//	-sync-max-retries transient failure retry cap per sync run
//	-sync-backoff initial retry backoff
//	-audit-reads opt data reads into auditing
func ParseFlags() *StructuredConfig {
	var serverAddress NetAddress
	var databaseDSN string
	var databaseDriver string
	var migrate bool
	var debug bool
	var defaultLanguage string
	var jsonConfigPath string
	var passwordHashKey string
	var tokenSignKey string
	var tokenIssuer string
	var tokenDuration time.Duration
	var requestTimeout time.Duration
	var repositoryUUID string
	var repositoryName string
	var syncPeriod time.Duration
	var syncMaxRetries int
	var syncBackoff time.Duration
	var auditReads bool

	flag.Var(&serverAddress, "a", "Net address host:port")
	flag.StringVar(&databaseDSN, "d", "", "Database DSN")
	flag.StringVar(&databaseDriver, "driver", "", "Database driver (pgx or sqlite3)")
	flag.BoolVar(&migrate, "migrate", false, "Apply pending schema migrations at startup")
	flag.BoolVar(&debug, "debug", false, "Enable verbose diagnostics")
	flag.StringVar(&defaultLanguage, "lang", "", "Default language code")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")
	flag.StringVar(&passwordHashKey, "password-hash-key", "", "Password hash key")
	flag.StringVar(&tokenSignKey, "token-sign-key", "", "Token signing key")
	flag.StringVar(&tokenIssuer, "token-issuer", "", "Token issuer")
	flag.DurationVar(&tokenDuration, "token-duration", 0, "Token duration (e.g., 1h, 30m)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s, 1m)")
	flag.StringVar(&repositoryUUID, "repository-uuid", "", "Local repository uuid")
	flag.StringVar(&repositoryName, "repository-name", "", "Local repository name")
	flag.DurationVar(&syncPeriod, "sync-period", 0, "Sync scheduler tick interval")
	flag.IntVar(&syncMaxRetries, "sync-max-retries", 0, "Sync transient failure retry cap")
	flag.DurationVar(&syncBackoff, "sync-backoff", 0, "Sync initial retry backoff")
	flag.BoolVar(&auditReads, "audit-reads", false, "Audit data reads")

	flag.Parse()

	return &StructuredConfig{
		Migrate:         migrate,
		Debug:           debug,
		DefaultLanguage: defaultLanguage,
		Auth: Auth{
			PasswordHashKey: passwordHashKey,
			TokenSignKey:    tokenSignKey,
			TokenIssuer:     tokenIssuer,
			TokenDuration:   tokenDuration,
		},
		Database: Database{
			DSN:    databaseDSN,
			Driver: databaseDriver,
		},
		Server: Server{
			HTTPAddress:    serverAddress.String(),
			RequestTimeout: requestTimeout,
		},
		Sync: Sync{
			RepositoryUUID:  repositoryUUID,
			RepositoryName:  repositoryName,
			SchedulerPeriod: syncPeriod,
			MaxRetries:      syncMaxRetries,
			Backoff:         syncBackoff,
		},
		Audit: Audit{
			ReadEnabled: auditReads,
		},
		JSONFilePath: jsonConfigPath,
	}
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns the empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 {
		return errors.New("port number is a positive integer")
	}

	if host != "localhost" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
