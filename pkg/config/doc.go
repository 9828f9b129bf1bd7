// Package config loads the server configuration from WARDEN_* environment
// variables and validates it.
//
// Server:
//
//	WARDEN_HOST="0.0.0.0"
//	WARDEN_PORT="8080"
//	WARDEN_HEALTH_PORT="9090"
//	WARDEN_READ_TIMEOUT="15s"
//	WARDEN_WRITE_TIMEOUT="30s"
//	WARDEN_SHUTDOWN_TIMEOUT="30s"
//	WARDEN_MAX_REQUEST_BYTES="12582912"
//	WARDEN_CORS_ALLOWED_ORIGINS="https://admin.example.com"
//
// Database:
//
//	WARDEN_DB_DRIVER="postgres"  # postgres, sqlite3
//	WARDEN_DATABASE_URL="postgres://warden@localhost/warden?sslmode=disable"
//	WARDEN_DB_MAX_OPEN_CONNS="10"
//
// Identity:
//
//	WARDEN_IDENTITY_MODE="oidc"  # oidc, header
//	WARDEN_OIDC_ISSUER_URL="https://idp.example.com"
//	WARDEN_OIDC_CLIENT_ID="warden"
//
// Blob storage:
//
//	WARDEN_STORAGE_TYPE="s3"  # local, s3
//	WARDEN_UPLOAD_DIR="./uploads"
//	WARDEN_S3_BUCKET="warden-uploads"
//	WARDEN_S3_REGION="us-east-1"
//	WARDEN_S3_PUBLIC_BASE_URL="https://files.example.com"
//
// Roles, rate limiting and observability:
//
//	WARDEN_ROLES_FILE="/etc/warden/roles.yaml"
//	WARDEN_REDIS_URL="redis://localhost:6379/0"
//	WARDEN_UPLOAD_RATE_LIMIT="30"
//	WARDEN_UPLOAD_RATE_WINDOW="1m"
//	WARDEN_LOG_LEVEL="info"  # debug, info, warn, error
//	WARDEN_METRICS_ENABLED="true"
//	WARDEN_OTEL_ENABLED="true"
//	WARDEN_OTEL_ENDPOINT="otel-collector:4317"
//	WARDEN_OTEL_SAMPLE_RATIO="0.1"
//
// Usage:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
