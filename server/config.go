package server

import "time"

// Config is read with the HTTP prefix.
type Config struct {
	AppName            string        `envconfig:"APP_NAME" split_words:"true" default:"device-reservation-agent"`
	Port               string        `envconfig:"PORT" default:"8000"`
	APIPrefix          string        `envconfig:"API_PREFIX" split_words:"true" default:"/api"`
	CORSAllowOrigins   []string      `envconfig:"CORS_ALLOW_ORIGINS" split_words:"true" default:"*"`
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" split_words:"true" default:"120"`
	RateLimitBurst     int           `envconfig:"RATE_LIMIT_BURST" split_words:"true" default:"20"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"10s"`
}
