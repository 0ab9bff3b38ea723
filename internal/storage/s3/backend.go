package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/objectfs/metacache/internal/circuit"
	"github.com/objectfs/metacache/internal/headers"
	mcerrors "github.com/objectfs/metacache/pkg/errors"
	"github.com/objectfs/metacache/pkg/types"
)

// maxListKeys is the S3 page size ceiling.
const maxListKeys = 1000

// api is the subset of *s3.Client the backend calls.
type api interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Backend implements types.Backend on top of the AWS S3 API
type Backend struct {
	client   api
	bucket   string
	config   *Config
	logger   *slog.Logger
	observer Observer
	metrics  *MetricsCollector
	breaker  *circuit.Breaker // nil when disabled
}

var _ types.Backend = (*Backend)(nil)

// Option configures a Backend
type Option func(*Backend)

// WithObserver reports each backend call to o.
func WithObserver(o Observer) Option {
	return func(b *Backend) {
		if o != nil {
			b.observer = o
		}
	}
}

// WithLogger sets the backend logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l.With("component", "s3-backend", "bucket", b.bucket)
		}
	}
}

// NewBackend creates an S3 backend for bucket. Static credentials are used
// when configured, otherwise the default AWS credential chain.
func NewBackend(ctx context.Context, bucket string, cfg *Config, opts ...Option) (*Backend, error) {
	if bucket == "" {
		return nil, mcerrors.NewError(mcerrors.ErrCodeInvalidConfig, "bucket name cannot be empty").
			WithComponent("s3-backend")
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	cfg.applyDefaults()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		// retried by withRetry
		config.WithRetryMaxAttempts(1),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, mcerrors.NewError(mcerrors.ErrCodeConfigLoad, "failed to load AWS config").
			WithComponent("s3-backend").WithCause(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	b := newBackend(client, bucket, cfg, opts...)
	b.logger.Info("S3 backend configured",
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.ForcePathStyle,
		"max_attempts", cfg.MaxAttempts)

	if !cfg.SkipHealthCheck {
		if err := b.HealthCheck(ctx); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func newBackend(client api, bucket string, cfg *Config, opts ...Option) *Backend {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	cfg.applyDefaults()

	b := &Backend{
		client:   client,
		bucket:   bucket,
		config:   cfg,
		logger:   slog.Default().With("component", "s3-backend", "bucket", bucket),
		observer: nopObserver{},
		metrics:  NewMetricsCollector(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if cfg.CircuitBreaker {
		threshold := cfg.FailureThreshold
		if threshold < 0 {
			threshold = 0
		}
		b.breaker = circuit.New("s3:"+bucket, circuit.Config{
			FailureThreshold: uint32(threshold),
			Timeout:          cfg.BreakerTimeout,
			OnStateChange: func(name string, from, to circuit.State) {
				b.logger.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
			},
		})
	}
	return b
}

// HeadObject returns the object's headers as a lower-cased map holding
// content-length, content-type, etag, last-modified and x-amz-meta-*.
func (b *Backend) HeadObject(ctx context.Context, key string) (map[string]string, error) {
	out, err := withRetry(ctx, b, "head", key, func(ctx context.Context) (*s3.HeadObjectOutput, error) {
		return b.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
	})
	if err != nil {
		return nil, err
	}
	return headObjectHeaders(out), nil
}

// ListPage lists the names directly under prefix. Names are relative to
// prefix and common prefixes come back as directory entries ending in "/".
// marker is a full key; the listing starts strictly after it.
func (b *Backend) ListPage(ctx context.Context, prefix, marker string, maxKeys int) (types.ListPage, error) {
	if maxKeys <= 0 || maxKeys > maxListKeys {
		maxKeys = maxListKeys
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(int32(maxKeys)),
	}
	if marker != "" {
		input.StartAfter = aws.String(marker)
	}

	out, err := withRetry(ctx, b, "list", prefix, func(ctx context.Context) (*s3.ListObjectsV2Output, error) {
		return b.client.ListObjectsV2(ctx, input)
	})
	if err != nil {
		return types.ListPage{}, err
	}

	page := listPage(prefix, out)
	b.observer.RecordListPage(len(page.Entries))
	return page, nil
}

// GetObject returns the full object body.
func (b *Backend) GetObject(ctx context.Context, key string) ([]byte, error) {
	data, err := withRetry(ctx, b, "get", key, func(ctx context.Context) ([]byte, error) {
		out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, err
		}
		defer out.Body.Close()

		data, err := io.ReadAll(out.Body)
		if err != nil {
			return nil, mcerrors.NewError(mcerrors.ErrCodeStorageRead, "failed to read object body").
				WithComponent("s3-backend").WithContext("key", key).WithCause(err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	b.metrics.RecordBytesDownloaded(int64(len(data)))
	return data, nil
}

// HealthCheck verifies the bucket is reachable
func (b *Backend) HealthCheck(ctx context.Context) error {
	_, err := withRetry(ctx, b, "head_bucket", "", func(ctx context.Context) (*s3.HeadBucketOutput, error) {
		return b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

// GetMetrics returns current backend metrics
func (b *Backend) GetMetrics() BackendMetrics {
	m := b.metrics.GetMetrics()
	if b.breaker != nil {
		m.BreakerState = b.breaker.State().String()
	}
	return m
}

// withRetry runs call with the configured backoff, translating errors to
// MetacacheError so that only transient failures are retried.
func withRetry[T any](ctx context.Context, b *Backend, op, key string, call func(context.Context) (T, error)) (T, error) {
	start := time.Now()

	result, err := retry.DoWithData(
		func() (T, error) {
			if b.breaker != nil {
				if err := b.breaker.Allow(); err != nil {
					var zero T
					return zero, err
				}
			}

			callCtx, cancel := b.requestContext(ctx)
			defer cancel()

			v, err := call(callCtx)
			if err != nil {
				err = b.translateError(err, op, key)
			}
			if b.breaker != nil {
				b.breaker.Done(err)
			}
			return v, err
		},
		retry.Attempts(uint(b.config.MaxAttempts)),
		retry.Delay(b.config.BaseDelay),
		retry.MaxDelay(b.config.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(mcerrors.IsRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			// also called after the final attempt
			if int(n)+1 >= b.config.MaxAttempts {
				return
			}
			b.metrics.RecordRetry()
			b.logger.DebugContext(ctx, "retrying S3 request",
				"operation", op,
				"key", key,
				"attempt", n+1,
				"error", err)
		}),
		retry.Context(ctx),
	)

	duration := time.Since(start)
	notFound := mcerrors.IsNotFound(err)
	b.metrics.RecordMetrics(duration, err != nil && !notFound)
	switch {
	case notFound:
		b.metrics.RecordNotFound()
	case err != nil:
		b.metrics.RecordError(err, time.Now())
		b.logger.WarnContext(ctx, "S3 request failed", "operation", op, "key", key, "error", err)
	}
	b.observer.RecordBackendOperation(op, duration, err)

	return result, err
}

func (b *Backend) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, b.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (b *Backend) translateError(err error, operation, key string) error {
	var mcErr *mcerrors.MetacacheError
	if errors.As(err, &mcErr) {
		return err
	}

	code := mcerrors.ErrCodeStorageRead
	switch {
	case isErrorType[*s3types.NoSuchKey](err), isErrorType[*s3types.NotFound](err):
		code = mcerrors.ErrCodeObjectNotFound
	case isErrorType[*s3types.NoSuchBucket](err):
		code = mcerrors.ErrCodeBucketNotFound
	case errors.Is(err, context.Canceled):
		code = mcerrors.ErrCodeOperationCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = mcerrors.ErrCodeOperationTimeout
	default:
		code = codeFromResponse(err, code)
	}

	out := mcerrors.NewError(code, fmt.Sprintf("%s failed", operation)).
		WithComponent("s3-backend").
		WithOperation(operation).
		WithContext("bucket", b.bucket).
		WithCause(err)
	if key != "" {
		out = out.WithContext("key", key)
	}
	return out
}

// codeFromResponse maps API error codes and HTTP status codes that the SDK
// does not model as typed errors.
func codeFromResponse(err error, fallback mcerrors.ErrorCode) mcerrors.ErrorCode {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return mcerrors.ErrCodeObjectNotFound
		case "NoSuchBucket":
			return mcerrors.ErrCodeBucketNotFound
		case "AccessDenied", "Forbidden":
			return mcerrors.ErrCodeAccessDenied
		case "RequestTimeout":
			return mcerrors.ErrCodeOperationTimeout
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return mcerrors.ErrCodeObjectNotFound
		case http.StatusForbidden:
			return mcerrors.ErrCodeAccessDenied
		}
		return fallback
	}

	// no HTTP response at all: connection level failure
	return mcerrors.ErrCodeNetworkError
}

// isErrorType checks if an error is of a specific type
func isErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func headObjectHeaders(out *s3.HeadObjectOutput) map[string]string {
	h := make(headers.Headers)
	if out.ContentLength != nil {
		h.Set(headers.ContentLength, strconv.FormatInt(aws.ToInt64(out.ContentLength), 10))
	}
	if out.ContentType != nil {
		h.Set(headers.ContentType, aws.ToString(out.ContentType))
	}
	if out.ETag != nil {
		h.Set(headers.ETag, aws.ToString(out.ETag))
	}
	if out.LastModified != nil {
		h.Set(headers.LastModified, out.LastModified.UTC().Format(http.TimeFormat))
	}
	if out.StorageClass != "" {
		h.Set("x-amz-storage-class", string(out.StorageClass))
	}
	for k, v := range out.Metadata {
		h.Set(headers.MetaPrefix+k, v)
	}
	return h
}

func listPage(prefix string, out *s3.ListObjectsV2Output) types.ListPage {
	page := types.ListPage{
		Entries:   make([]types.ListEntry, 0, len(out.Contents)+len(out.CommonPrefixes)),
		Truncated: aws.ToBool(out.IsTruncated),
	}

	var last string
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		if key > last {
			last = key
		}
		name := strings.TrimPrefix(key, prefix)
		if name == "" {
			// the directory's own marker object
			continue
		}
		page.Entries = append(page.Entries, types.ListEntry{
			Name: name,
			ETag: aws.ToString(obj.ETag),
			Info: types.ObjectInfo{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         aws.ToString(obj.ETag),
			},
		})
	}

	for _, cp := range out.CommonPrefixes {
		key := aws.ToString(cp.Prefix)
		if key > last {
			last = key
		}
		name := strings.TrimPrefix(key, prefix)
		if name == "" {
			continue
		}
		page.Entries = append(page.Entries, types.ListEntry{
			Name:  name,
			IsDir: true,
			Info:  types.ObjectInfo{Key: key},
		})
	}

	if page.Truncated {
		page.NextMarker = last
	}
	return page
}
