// Package config loads server and client settings. Values come from the
// defaults, then an optional TOML file, then environment variables prefixed
// with GAMENET_, and are validated last.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/protocol"
)

// EnvPrefix prefixes every environment variable read by the loaders.
const EnvPrefix = "GAMENET_"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid")

// Auth modes of a game server.
const (
	AuthLocal  = "local"
	AuthRemote = "remote"
)

// Token stores of an authority.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Log configures the logger.
type Log struct {
	Level string `toml:"level" env:"LEVEL"`
	// Format is "console" or "json".
	Format string `toml:"format" env:"FORMAT"`
}

// Account is a static account served by the authority.
type Account struct {
	Login    string `toml:"login"`
	Password string `toml:"password"`
	Player   int32  `toml:"player"`
	Banned   bool   `toml:"banned"`
}

// Authority configures token issuing and verification.
type Authority struct {
	// Listen is where the authority command accepts connections.
	Listen        string   `toml:"listen" env:"LISTEN"`
	Store         string   `toml:"store" env:"STORE"`
	RedisAddr     string   `toml:"redis_addr" env:"REDIS_ADDR"`
	TokenTTL      Duration `toml:"token_ttl" env:"TOKEN_TTL"`
	MaxFailures   int      `toml:"max_failures" env:"MAX_FAILURES"`
	FailureWindow Duration `toml:"failure_window" env:"FAILURE_WINDOW"`
	Timeout       Duration `toml:"timeout" env:"TIMEOUT"`

	Accounts []Account `toml:"accounts"`
}

// Server configures a game server.
type Server struct {
	Log Log `toml:"log" envPrefix:"LOG_"`

	TCPAddr string `toml:"tcp_addr" env:"TCP_ADDR"`
	// HTTPAddr serves /ws, /metrics and /healthz; empty disables it.
	HTTPAddr     string   `toml:"http_addr" env:"HTTP_ADDR"`
	ReadTimeout  Duration `toml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout Duration `toml:"write_timeout" env:"WRITE_TIMEOUT"`
	MaxFrameSize int      `toml:"max_frame_size" env:"MAX_FRAME_SIZE"`
	Tick         Duration `toml:"tick" env:"TICK"`

	// Version is announced to authenticated clients, e.g. "1.0.0.0-release".
	Version string `toml:"version" env:"VERSION"`

	// AuthMode is "local" to verify tokens in process or "remote" to ask
	// the authority at AuthorityAddr.
	AuthMode      string   `toml:"auth_mode" env:"AUTH_MODE"`
	AuthorityAddr string   `toml:"authority_addr" env:"AUTHORITY_ADDR"`
	RetryInterval Duration `toml:"retry_interval" env:"RETRY_INTERVAL"`
	// MaxRetries bounds reconnection to the authority; 0 is unbounded.
	MaxRetries int `toml:"max_retries" env:"MAX_RETRIES"`

	Authority Authority `toml:"authority" envPrefix:"AUTHORITY_"`
}

// Client configures the connect command.
type Client struct {
	Log Log `toml:"log" envPrefix:"LOG_"`

	AuthorityAddr  string   `toml:"authority_addr" env:"AUTHORITY_ADDR"`
	ServerAddr     string   `toml:"server_addr" env:"SERVER_ADDR"`
	Login          string   `toml:"login" env:"LOGIN"`
	Password       string   `toml:"password" env:"PASSWORD"`
	ConnectTimeout Duration `toml:"connect_timeout" env:"CONNECT_TIMEOUT"`
	Tick           Duration `toml:"tick" env:"TICK"`
	RetryInterval  Duration `toml:"retry_interval" env:"RETRY_INTERVAL"`
	MaxRetries     int      `toml:"max_retries" env:"MAX_RETRIES"`
}

// DefaultServer returns the server defaults.
func DefaultServer() Server {
	return Server{
		Log:           Log{Level: "info", Format: "console"},
		TCPAddr:       ":7777",
		HTTPAddr:      ":8080",
		ReadTimeout:   Duration(2 * time.Minute),
		WriteTimeout:  Duration(10 * time.Second),
		MaxFrameSize:  64 * 1024,
		Tick:          Duration(50 * time.Millisecond),
		Version:       "1.0.0.0-release",
		AuthMode:      AuthLocal,
		AuthorityAddr: "127.0.0.1:7778",
		RetryInterval: Duration(5 * time.Second),
		Authority: Authority{
			Listen:        ":7778",
			Store:         StoreMemory,
			RedisAddr:     "127.0.0.1:6379",
			TokenTTL:      Duration(time.Hour),
			MaxFailures:   5,
			FailureWindow: Duration(5 * time.Minute),
			Timeout:       Duration(2 * time.Second),
		},
	}
}

// DefaultClient returns the client defaults.
func DefaultClient() Client {
	return Client{
		Log:            Log{Level: "info", Format: "console"},
		AuthorityAddr:  "127.0.0.1:7778",
		ServerAddr:     "127.0.0.1:7777",
		ConnectTimeout: Duration(10 * time.Second),
		Tick:           Duration(50 * time.Millisecond),
		RetryInterval:  Duration(time.Second),
		MaxRetries:     3,
	}
}

// LoadServer loads the server configuration.
//
// Parameters:
//   - path: TOML file to read; empty skips the file
//
// Returns:
//   - The configuration
//   - An error if the file or environment cannot be parsed or the result
//     is invalid
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()
	if err := load(path, &cfg); err != nil {
		return Server{}, fmt.Errorf("load server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// LoadClient loads the client configuration. See LoadServer.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()
	if err := load(path, &cfg); err != nil {
		return Client{}, fmt.Errorf("load client config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

func load(path string, cfg any) error {
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return err
		}
	}

	return env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix})
}

// Validate checks the server configuration.
func (s Server) Validate() error {
	var errs []error

	errs = append(errs, s.Log.validate())
	errs = append(errs, validAddr("tcp_addr", s.TCPAddr))
	if s.HTTPAddr != "" {
		errs = append(errs, validAddr("http_addr", s.HTTPAddr))
	}
	if s.Tick <= 0 {
		errs = append(errs, invalid("tick must be positive"))
	}
	if s.MaxFrameSize <= 0 {
		errs = append(errs, invalid("max_frame_size must be positive"))
	}
	if _, err := ParseVersion(s.Version); err != nil {
		errs = append(errs, err)
	}

	switch s.AuthMode {
	case AuthLocal:
	case AuthRemote:
		errs = append(errs, validAddr("authority_addr", s.AuthorityAddr))
		if s.RetryInterval <= 0 {
			errs = append(errs, invalid("retry_interval must be positive"))
		}
	default:
		errs = append(errs, invalid("auth_mode %q, want %q or %q", s.AuthMode, AuthLocal, AuthRemote))
	}

	errs = append(errs, s.Authority.validate())

	return errors.Join(errs...)
}

func (a Authority) validate() error {
	var errs []error

	switch a.Store {
	case StoreMemory:
	case StoreRedis:
		if a.RedisAddr == "" {
			errs = append(errs, invalid("authority.redis_addr is required with the redis store"))
		}
	default:
		errs = append(errs, invalid("authority.store %q, want %q or %q", a.Store, StoreMemory, StoreRedis))
	}

	if a.TokenTTL < 0 {
		errs = append(errs, invalid("authority.token_ttl must not be negative"))
	}
	if a.MaxFailures > 0 && a.FailureWindow <= 0 {
		errs = append(errs, invalid("authority.failure_window must be positive when max_failures is set"))
	}
	if a.Timeout <= 0 {
		errs = append(errs, invalid("authority.timeout must be positive"))
	}

	seen := make(map[string]bool, len(a.Accounts))
	for _, acc := range a.Accounts {
		switch {
		case strings.TrimSpace(acc.Login) == "":
			errs = append(errs, invalid("authority account without login"))
		case seen[acc.Login]:
			errs = append(errs, invalid("authority account %q defined twice", acc.Login))
		case protocol.PlayerID(acc.Player) == protocol.NoPlayer:
			errs = append(errs, invalid("authority account %q uses the reserved player id", acc.Login))
		}
		seen[acc.Login] = true
	}

	return errors.Join(errs...)
}

// Validate checks the client configuration.
func (c Client) Validate() error {
	errs := []error{
		c.Log.validate(),
		validAddr("authority_addr", c.AuthorityAddr),
		validAddr("server_addr", c.ServerAddr),
	}
	if c.Tick <= 0 {
		errs = append(errs, invalid("tick must be positive"))
	}
	if c.RetryInterval <= 0 {
		errs = append(errs, invalid("retry_interval must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, invalid("max_retries must not be negative"))
	}
	return errors.Join(errs...)
}

func (l Log) validate() error {
	if _, ok := logger.ParseLevel(l.Level); !ok {
		return invalid("log.level %q", l.Level)
	}
	switch l.Format {
	case "console", "json":
		return nil
	default:
		return invalid("log.format %q, want console or json", l.Format)
	}
}

// NewLogger builds the logger described by l.
func (l Log) NewLogger(service string) logger.Logger {
	level, _ := logger.ParseLevel(l.Level)
	if l.Format == "json" {
		return logger.NewWriterLogger(os.Stderr, service, level)
	}
	return logger.NewConsoleLogger(service, level)
}

// SplitAddr splits "host:port" into the form client transports take.
func SplitAddr(addr string) (string, int, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("port %q: %w", p, err)
	}
	return host, port, nil
}

// ParseVersion parses "major.minor.sub.rev-type" where type is alpha, beta
// or release.
func ParseVersion(s string) (protocol.Version, error) {
	nums, kind, ok := strings.Cut(s, "-")
	if !ok {
		return protocol.Version{}, invalid("version %q: missing type", s)
	}

	parts := strings.Split(nums, ".")
	if len(parts) != 4 {
		return protocol.Version{}, invalid("version %q: want four numbers", s)
	}

	var n [4]int32
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return protocol.Version{}, invalid("version %q: %v", s, err)
		}
		n[i] = int32(v)
	}

	var t protocol.VersionType
	switch strings.ToLower(kind) {
	case "alpha":
		t = protocol.VersionAlpha
	case "beta":
		t = protocol.VersionBeta
	case "release":
		t = protocol.VersionRelease
	default:
		return protocol.Version{}, invalid("version %q: unknown type %q", s, kind)
	}

	return protocol.Version{Major: n[0], Minor: n[1], Sub: n[2], Rev: n[3], Type: t}, nil
}

func validAddr(name, addr string) error {
	if _, _, err := SplitAddr(addr); err != nil {
		return invalid("%s %q: %v", name, addr, err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
