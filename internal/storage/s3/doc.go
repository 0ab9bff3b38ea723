/*
Package s3 implements types.Backend against AWS S3 and S3-compatible stores.

The metadata layer needs three read calls from the store and this package
provides exactly those:

	HeadObject  → header map (content-length, content-type, etag,
	              last-modified, x-amz-meta-*)
	ListPage    → one delimited ListObjectsV2 page, names relative to prefix
	GetObject   → object body (symlink targets)

plus HealthCheck, a HeadBucket probe run by NewBackend unless
Config.SkipHealthCheck is set.

# Configuration

	backend, err := s3.NewBackend(ctx, "my-bucket", &s3.Config{
		Region:         "us-west-2",
		Endpoint:       "http://localhost:9000", // MinIO
		ForcePathStyle: true,
		MaxAttempts:    3,
		BaseDelay:      200 * time.Millisecond,
		MaxDelay:       5 * time.Second,
	}, s3.WithObserver(collector))

ConfigFrom builds a Config from the storage and network sections of the
application configuration. Static keys are used when AccessKeyID is set,
otherwise the default AWS credential chain applies (environment, shared
config, instance role).

# Errors and retries

SDK errors are translated to *errors.MetacacheError:

	NotFound, NoSuchKey, HTTP 404    OBJECT_NOT_FOUND
	NoSuchBucket                     BUCKET_NOT_FOUND
	AccessDenied, HTTP 403           ACCESS_DENIED
	context deadline, RequestTimeout OPERATION_TIMEOUT
	other HTTP responses             STORAGE_READ
	no response                      NETWORK_ERROR

Retryable codes are retried with exponential backoff through retry-go; the
SDK's own retryer is limited to a single attempt so the two never stack.
A missing object is never retried and is not counted as an error.

# Metrics

GetMetrics returns in-process counters (requests, errors, not-found,
retries, bytes, rolling latency). An Observer passed with WithObserver
receives every call, which is how the Prometheus collector is fed.
*/
package s3
