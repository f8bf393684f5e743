package types

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`

	// Staff auth: bearer tokens are issued by the external identity
	// provider; we only verify them against its JWKS.
	StaffIssuerURL string `envconfig:"STAFF_ISSUER_URL"`

	// Stripe
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	GatewayTimeoutSec   uint   `envconfig:"GATEWAY_TIMEOUT_SEC" default:"20"`

	// Signing
	SigningTokenTTLHours uint `envconfig:"SIGNING_TOKEN_TTL_HOURS" default:"72"`

	// Document storage
	DocumentBucket string `envconfig:"DOCUMENT_BUCKET" default:"rentfold-documents"`

	// Audit / notification sink (optional; log-only when empty)
	NotifySinkURL string `envconfig:"NOTIFY_SINK_URL"`

	// Processed webhook event retention for the prune-events command
	EventRetentionDays uint `envconfig:"EVENT_RETENTION_DAYS" default:"90"`

	// Cookie encryption keys (base64 encoded)
	// openssl rand -base64 32
	// to generate values
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes
}
