package server

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/keys"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) keys.S3API {
		return s3.NewFromConfig(cfg, optFns...)
	}

	connectNATS = func(url string, opts ...nats.Option) (natsConn, error) {
		return nats.Connect(url, opts...)
	}
)

type natsConn interface {
	events.Conn
	Drain() error
}

func nopClose() error { return nil }

// newKeyBackend builds the key material backend selected by c.KeyBackend and
// a function releasing its resources.
func newKeyBackend(ctx context.Context, c *config.Config) (keys.Backend, func() error, error) {
	switch c.KeyBackend {
	case config.KeyBackendFile, "":
		b, err := keys.NewFileBackend(c.KeyDir)
		if err != nil {
			return nil, nil, err
		}
		return b, nopClose, nil

	case config.KeyBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return keys.NewRedisBackend(client, c.RedisPrefix), client.Close, nil

	case config.KeyBackendS3:
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.S3Region)}
		if c.S3RootUser != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				c.S3RootUser,
				c.S3RootPassword,
				"",
			)))
		}

		cfg, err := loadDefaultAWSConfig(ctx, opts...)
		if err != nil {
			return nil, nil, err
		}

		client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
			if c.S3BaseEndpoint != "" {
				o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
				o.UsePathStyle = true
			}
		})
		return keys.NewS3Backend(client, c.S3Bucket, c.S3Prefix), nopClose, nil

	default:
		return nil, nil, fmt.Errorf("unknown key backend %q", c.KeyBackend)
	}
}

// newPublisher connects to the status bus. An empty url disables events.
func newPublisher(url string, logger logging.Logger) (events.Publisher, func() error, error) {
	if url == "" {
		return events.NopPublisher{}, nopClose, nil
	}

	conn, err := connectNATS(url, nats.Name(ServiceName), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	return events.NewNATSPublisher(conn, ServiceName, logger), conn.Drain, nil
}

type expiredCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// runCleanup deletes expired refresh token records every interval until ctx
// is done. A non-positive interval disables it.
func runCleanup(ctx context.Context, c expiredCleaner, interval time.Duration, logger logging.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.CleanupExpired(ctx); err != nil {
				logger.Error(ctx, "refresh token cleanup failed", "error", err)
			}
		}
	}
}
