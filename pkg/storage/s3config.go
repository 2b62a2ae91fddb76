package storage

import (
	"os"
	"strings"
)

// ConfigFromEnv loads S3 configuration from the environment variables
// recognized by spec §6 (SNAPBASE_S3_* and the standard AWS_* variables).
// Unlike the workspace config document, this path never requires a
// snapbase.yaml file to exist — it is the precedence fallback described in
// §6, and the one path used when a caller wants S3 storage without writing
// a config document at all.
func ConfigFromEnv() Config {
	cfg := Config{
		Bucket:           os.Getenv("SNAPBASE_S3_BUCKET"),
		Prefix:           os.Getenv("SNAPBASE_S3_PREFIX"),
		Region:           firstNonEmpty(os.Getenv("SNAPBASE_S3_REGION"), os.Getenv("AWS_REGION"), "us-east-1"),
		AccessKeyID:      os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey:  os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:     os.Getenv("AWS_SESSION_TOKEN"),
		Endpoint:         os.Getenv("AWS_ENDPOINT_URL"),
		UseExpress:       strings.EqualFold(os.Getenv("SNAPBASE_S3_USE_EXPRESS"), "true"),
		AvailabilityZone: os.Getenv("SNAPBASE_S3_AVAILABILITY_ZONE"),
	}

	// MinIO and other S3-compatible endpoints generally require path-style
	// addressing; real AWS S3 does not. Mirrors the teacher's isMinIO
	// detection in duck/config.go.
	isMinIO := cfg.Endpoint != "" && !strings.Contains(cfg.Endpoint, "amazonaws.com")
	cfg.UsePathStyle = isMinIO

	return cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
