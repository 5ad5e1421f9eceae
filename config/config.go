package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	StrategyCatalog = "catalog"
	StrategySearch  = "search"
)

const (
	DeliveryProxy    = "proxy"
	DeliveryRedirect = "redirect"
)

const AnyOrigin = "*"

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Environment  string `mapstructure:"environment"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	IdleTimeout  string `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Enabled reports whether a cross-origin policy should be installed at all.
func (c CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// AllowsAll reports whether the wildcard origin was configured.
func (c CORSConfig) AllowsAll() bool {
	for _, origin := range c.AllowedOrigins {
		if origin == AnyOrigin {
			return true
		}
	}
	return false
}

type EndpointConfig struct {
	URL     string `mapstructure:"url"`
	Timeout string `mapstructure:"timeout"`
}

type ImageFetchConfig struct {
	Timeout string `mapstructure:"timeout"`
}

type UpstreamsConfig struct {
	UserAgent string           `mapstructure:"user_agent"`
	Fact      EndpointConfig   `mapstructure:"fact"`
	Translate EndpointConfig   `mapstructure:"translate"`
	Catalog   EndpointConfig   `mapstructure:"catalog"`
	Search    EndpointConfig   `mapstructure:"search"`
	Image     ImageFetchConfig `mapstructure:"image"`
}

type ImageConfig struct {
	Strategy    string   `mapstructure:"strategy"`
	Delivery    string   `mapstructure:"delivery"`
	Categories  []string `mapstructure:"categories"`
	FallbackURL string   `mapstructure:"fallback_url"`
	ThumbWidth  int      `mapstructure:"thumb_width"`
	MemberLimit int      `mapstructure:"member_limit"`
	MaxBytes    int64    `mapstructure:"max_bytes"`
}

type CircuitBreakerConfig struct {
	Threshold    int    `mapstructure:"threshold"`
	ResetTimeout string `mapstructure:"reset_timeout"`
}

type FactConfig struct {
	Fallback string `mapstructure:"fallback"`
}

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	CORS           CORSConfig           `mapstructure:"cors"`
	Upstreams      UpstreamsConfig      `mapstructure:"upstreams"`
	Image          ImageConfig          `mapstructure:"image"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Fact           FactConfig           `mapstructure:"fact"`
}

// DefaultFallbackFact is served when the fact provider cannot be reached.
const DefaultFallbackFact = "Cats sleep 12–16 hours a day."

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("cors.allowed_origins", []string{})

	v.SetDefault("upstreams.user_agent", "cat-facts/1.0 (+https://github.com/angeloszaimis/cat-facts)")
	v.SetDefault("upstreams.fact.url", "https://catfact.ninja/fact")
	v.SetDefault("upstreams.fact.timeout", "5s")
	v.SetDefault("upstreams.translate.url", "https://translate.googleapis.com/translate_a/single")
	v.SetDefault("upstreams.translate.timeout", "8s")
	v.SetDefault("upstreams.catalog.url", "https://commons.wikimedia.org/w/api.php")
	v.SetDefault("upstreams.catalog.timeout", "10s")
	v.SetDefault("upstreams.search.url", "https://api.thecatapi.com/v1/images/search")
	v.SetDefault("upstreams.search.timeout", "10s")
	v.SetDefault("upstreams.image.timeout", "15s")

	v.SetDefault("image.strategy", StrategyCatalog)
	v.SetDefault("image.delivery", DeliveryProxy)
	v.SetDefault("image.categories", []string{"Kittens", "Sleeping cats", "Tabby cats", "Black cats", "Ginger cats"})
	v.SetDefault("image.fallback_url", "https://upload.wikimedia.org/wikipedia/commons/3/3a/Cat03.jpg")
	v.SetDefault("image.thumb_width", 800)
	v.SetDefault("image.member_limit", 50)
	v.SetDefault("image.max_bytes", 10<<20)

	v.SetDefault("circuit_breaker.threshold", 5)
	v.SetDefault("circuit_breaker.reset_timeout", "30s")

	v.SetDefault("fact.fallback", DefaultFallbackFact)
}

func Load() (*Config, error) {
	// A missing .env is the normal case outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", slog.String("error", err.Error()))
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The origin list predates the nested key layout
	if err := v.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS", "ALLOWED_ORIGINS"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Info("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

// normalize trims list entries coming from comma-separated env values and
// drops empties and duplicates while keeping the configured order.
func (c *Config) normalize() {
	c.CORS.AllowedOrigins = uniqueTrimmed(c.CORS.AllowedOrigins, func(s string) string {
		return strings.TrimRight(s, "/")
	})
	c.Image.Categories = uniqueTrimmed(c.Image.Categories, func(s string) string {
		return strings.TrimPrefix(s, "Category:")
	})
	c.Image.Strategy = strings.ToLower(strings.TrimSpace(c.Image.Strategy))
	c.Image.Delivery = strings.ToLower(strings.TrimSpace(c.Image.Delivery))
}

func uniqueTrimmed(values []string, clean func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))

	for _, value := range values {
		value = clean(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}

	return out
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
					validation.Field(&sc.ReadTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.WriteTimeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&sc.IdleTimeout, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.CORS,
			validation.By(func(value interface{}) error {
				cc, ok := value.(CORSConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CORSConfig")
				}
				return validation.ValidateStruct(&cc,
					validation.Field(&cc.AllowedOrigins,
						validation.Each(validation.By(validateOrigin)),
						validation.When(cc.AllowsAll(), validation.Length(1, 1).Error("the wildcard origin cannot be combined with other origins")),
					),
				)
			}),
		),
		validation.Field(&c.Upstreams,
			validation.Required,
			validation.By(func(value interface{}) error {
				uc, ok := value.(UpstreamsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an UpstreamsConfig")
				}
				return validation.ValidateStruct(&uc,
					validation.Field(&uc.UserAgent, validation.Required),
					validation.Field(&uc.Fact, validation.By(validateEndpoint)),
					validation.Field(&uc.Translate, validation.By(validateEndpoint)),
					validation.Field(&uc.Catalog, validation.By(validateEndpoint)),
					validation.Field(&uc.Search, validation.By(validateEndpoint)),
					validation.Field(&uc.Image, validation.By(func(value interface{}) error {
						ic, ok := value.(ImageFetchConfig)
						if !ok {
							return validation.NewError("validation_invalid_type", "must be an ImageFetchConfig")
						}
						return validateDuration(ic.Timeout)
					})),
				)
			}),
		),
		validation.Field(&c.Image,
			validation.Required,
			validation.By(func(value interface{}) error {
				ic, ok := value.(ImageConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an ImageConfig")
				}
				return validation.ValidateStruct(&ic,
					validation.Field(&ic.Strategy,
						validation.Required,
						validation.In(StrategyCatalog, StrategySearch),
					),
					validation.Field(&ic.Delivery,
						validation.Required,
						validation.In(DeliveryProxy, DeliveryRedirect),
					),
					validation.Field(&ic.Categories,
						validation.When(ic.Strategy == StrategyCatalog, validation.Required),
					),
					validation.Field(&ic.FallbackURL,
						validation.When(ic.Strategy == StrategyCatalog, validation.Required),
						validation.By(validateOptionalURL),
					),
					validation.Field(&ic.ThumbWidth, validation.Required, validation.Min(1)),
					validation.Field(&ic.MemberLimit, validation.Required, validation.Min(1), validation.Max(500)),
					validation.Field(&ic.MaxBytes, validation.Required, validation.Min(int64(1))),
				)
			}),
		),
		validation.Field(&c.CircuitBreaker,
			validation.Required,
			validation.By(func(value interface{}) error {
				bc, ok := value.(CircuitBreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CircuitBreakerConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.Threshold, validation.Required, validation.Min(1)),
					validation.Field(&bc.ResetTimeout, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Fact,
			validation.Required,
			validation.By(func(value interface{}) error {
				fc, ok := value.(FactConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a FactConfig")
				}
				return validation.ValidateStruct(&fc,
					validation.Field(&fc.Fallback, validation.Required),
				)
			}),
		),
	); err != nil {
		return err
	}

	return c.validateTimeoutBudget()
}

// validateTimeoutBudget checks that a response can still be written after
// the slowest chain a handler may run. /catimg needs room for at least one
// catalog image and the fallback image; /fact runs the provider and the
// translator back to back.
func (c *Config) validateTimeoutBudget() error {
	write, _ := time.ParseDuration(c.Server.WriteTimeout)
	image, _ := time.ParseDuration(c.Upstreams.Image.Timeout)
	fact, _ := time.ParseDuration(c.Upstreams.Fact.Timeout)
	translate, _ := time.ParseDuration(c.Upstreams.Translate.Timeout)

	if write <= 2*image {
		return validation.Errors{
			"server": validation.Errors{
				"write_timeout": validation.NewError("validation_timeout_budget", "must be more than twice upstreams.image.timeout"),
			},
		}
	}

	if write <= fact+translate {
		return validation.Errors{
			"server": validation.Errors{
				"write_timeout": validation.NewError("validation_timeout_budget", "must exceed upstreams.fact.timeout plus upstreams.translate.timeout"),
			},
		}
	}

	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}

func validateEndpoint(value interface{}) error {
	endpoint, ok := value.(EndpointConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an EndpointConfig")
	}

	return validation.ValidateStruct(&endpoint,
		validation.Field(&endpoint.URL, validation.By(validateServerURL)),
		validation.Field(&endpoint.Timeout, validation.By(validateDuration)),
	)
}

func validateOptionalURL(value interface{}) error {
	if s, ok := value.(string); ok && s == "" {
		return nil
	}
	return validateServerURL(value)
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}

// validateOrigin accepts "*" or a bare scheme://host[:port].
func validateOrigin(value interface{}) error {
	origin, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if origin == AnyOrigin {
		return nil
	}

	if err := validateServerURL(origin); err != nil {
		return err
	}

	parsedURL, _ := url.Parse(origin)
	if parsedURL.Path != "" || parsedURL.RawQuery != "" || parsedURL.Fragment != "" || parsedURL.User != nil {
		return validation.NewError("validation_invalid_origin", "origin must be scheme://host[:port] only")
	}

	return nil
}
