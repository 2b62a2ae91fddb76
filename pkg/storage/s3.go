package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithy "github.com/aws/smithy-go"

	"github.com/peter-fm/snapbase/pkg/retry"
	"github.com/peter-fm/snapbase/pkg/snaperr"
	"github.com/peter-fm/snapbase/pkg/snapshot"
)

// Config configures the S3 backend, following the env-var-driven shape of
// the teacher's duck.S3Config / LoadS3ConfigFromEnv.
type Config struct {
	Bucket           string
	Prefix           string
	Region           string
	AccessKeyID      string // empty to use the default credential chain (IRSA etc)
	SecretAccessKey  string
	SessionToken     string
	Endpoint         string // non-empty for MinIO / S3-compatible endpoints
	UsePathStyle     bool
	UseExpress       bool   // S3 Express One Zone (directory buckets)
	AvailabilityZone string // required when UseExpress is set
}

// S3Backend implements Backend over an S3-compatible object store,
// including S3 Express directory buckets.
type S3Backend struct {
	client *s3.Client
	cfg    Config
	log    *slog.Logger
}

// NewS3Backend builds an S3Backend and performs the startup connectivity
// check described in spec §4.1: a HEAD on the configured bucket, refusing
// to initialize if inaccessible.
func NewS3Backend(ctx context.Context, log *slog.Logger, cfg Config) (*S3Backend, error) {
	var credsProvider aws.CredentialsProvider
	if cfg.AccessKeyID != "" {
		credsProvider = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	}

	optFns := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if credsProvider != nil {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(credsProvider))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "https://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
		} else if cfg.UseExpress {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://s3express-%s.%s.amazonaws.com", cfg.AvailabilityZone, cfg.Region))
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	b := &S3Backend{client: client, cfg: cfg, log: log}

	bucket := b.effectiveBucket()
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, snaperr.ConnectFailure("s3", bucket, err,
			"verify the bucket exists and your credentials (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY or IAM role) grant s3:HeadBucket")
	}

	return b, nil
}

// effectiveBucket returns the bucket name to present to the SDK, applying
// the S3 Express directory-bucket suffix when configured (spec §4.1).
func (b *S3Backend) effectiveBucket() string {
	if b.cfg.UseExpress {
		return fmt.Sprintf("%s--%s--x-s3", b.cfg.Bucket, b.cfg.AvailabilityZone)
	}
	return b.cfg.Bucket
}

// key builds the full S3 object key for a backend-relative path: the
// configured prefix plus the normalized path. Backslashes are rewritten to
// forward slashes on object stores (spec §4.1); local-style separators never
// appear in a correctly constructed path, but callers on Windows may pass
// them.
func (b *S3Backend) key(path string) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	if b.cfg.Prefix == "" {
		return normalized
	}
	return strings.TrimSuffix(b.cfg.Prefix, "/") + "/" + normalized
}

func (b *S3Backend) BasePath() string {
	if b.cfg.Prefix == "" {
		return "s3://" + b.cfg.Bucket
	}
	return "s3://" + b.cfg.Bucket + "/" + strings.TrimSuffix(b.cfg.Prefix, "/")
}

func (b *S3Backend) EnsureDirectory(ctx context.Context, path string) error {
	return nil // no-op on object stores, spec §4.1
}

func (b *S3Backend) WriteFile(ctx context.Context, path string, data []byte) error {
	return b.WriteFileWithProgress(ctx, path, data, nil)
}

func (b *S3Backend) WriteFileWithProgress(ctx context.Context, path string, data []byte, progress ProgressFunc) error {
	key := b.key(path)
	bucket := b.effectiveBucket()

	err := retry.Do(ctx, b.log, "s3_put_object", func() error {
		_, putErr := b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		if putErr != nil {
			return &retryableS3Error{err: putErr}
		}
		if progress != nil {
			progress(int64(len(data)), int64(len(data)))
		}
		return nil
	})
	if err != nil {
		return snaperr.Storage("s3", "write_file", path, err)
	}
	return nil
}

func (b *S3Backend) ReadFile(ctx context.Context, path string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.effectiveBucket()),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, snaperr.NotFound("file", path)
		}
		return nil, snaperr.Storage("s3", "read_file", path, err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, snaperr.Storage("s3", "read_file", path, err)
	}
	return buf.Bytes(), nil
}

// ListDirectories lists immediate child "directories" via ListObjectsV2 with
// delimiter "/", returning the distinct common prefixes stripped of their
// leading prefix (spec §4.1).
func (b *S3Backend) ListDirectories(ctx context.Context, path string) ([]string, error) {
	prefix := b.key(path)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var dirs []string
	var continuationToken *string
	for {
		out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.effectiveBucket()),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, snaperr.Storage("s3", "list_directories", path, err)
		}
		for _, cp := range out.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name != "" {
				dirs = append(dirs, name)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuationToken = out.NextContinuationToken
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (b *S3Backend) DeleteFile(ctx context.Context, path string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.effectiveBucket()),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		return snaperr.Storage("s3", "delete_file", path, err)
	}
	return nil
}

func (b *S3Backend) FileExists(ctx context.Context, path string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.effectiveBucket()),
		Key:    aws.String(b.key(path)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, snaperr.Storage("s3", "file_exists", path, err)
}

func (b *S3Backend) SupportsDuckDBDirectAccess() bool { return true }

// GetDuckDBPath translates a backend-relative path to an s3:// URI, applying
// the S3 Express directory-bucket suffix when configured (spec §4.1).
func (b *S3Backend) GetDuckDBPath(path string) string {
	return fmt.Sprintf("s3://%s/%s", b.effectiveBucket(), b.key(path))
}

func (b *S3Backend) ListSnapshots(ctx context.Context, source string) ([]snapshot.Metadata, error) {
	sourceRoot := "sources/" + source
	nameDirs, err := b.ListDirectories(ctx, sourceRoot)
	if err != nil {
		return nil, err
	}
	var out []snapshot.Metadata
	for _, nameDir := range nameDirs {
		if !strings.HasPrefix(nameDir, "snapshot_name=") {
			continue
		}
		tsDirs, err := b.ListDirectories(ctx, sourceRoot+"/"+nameDir)
		if err != nil {
			return nil, err
		}
		for _, tsDir := range tsDirs {
			if !strings.HasPrefix(tsDir, "snapshot_timestamp=") {
				continue
			}
			dir := sourceRoot + "/" + nameDir + "/" + tsDir
			md, ok, err := b.readMetadataIfComplete(ctx, dir)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, md)
			}
		}
	}
	return out, nil
}

func (b *S3Backend) readMetadataIfComplete(ctx context.Context, dir string) (snapshot.Metadata, bool, error) {
	hasData, err := b.FileExists(ctx, dir+"/data.parquet")
	if err != nil {
		return snapshot.Metadata{}, false, err
	}
	metaPath := dir + "/metadata.json"
	hasMeta, err := b.FileExists(ctx, metaPath)
	if err != nil {
		return snapshot.Metadata{}, false, err
	}
	if !hasData || !hasMeta {
		return snapshot.Metadata{}, false, nil
	}
	raw, err := b.ReadFile(ctx, metaPath)
	if err != nil {
		return snapshot.Metadata{}, false, err
	}
	var md snapshot.Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return snapshot.Metadata{}, false, snaperr.Storage("s3", "read_metadata", metaPath, err)
	}
	return md, true, nil
}

func (b *S3Backend) ListAllSnapshots(ctx context.Context) ([]snapshot.Metadata, error) {
	sources, err := walkSourceDirs(ctx, b.ListDirectories, "sources")
	if err != nil {
		return nil, err
	}
	var all []snapshot.Metadata
	for _, source := range sources {
		mds, err := b.ListSnapshots(ctx, source)
		if err != nil {
			return nil, err
		}
		all = append(all, mds...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Created.After(all[j].Created) })
	return all, nil
}

func (b *S3Backend) ListSnapshotsForAllSources(ctx context.Context) (map[string][]string, error) {
	sources, err := walkSourceDirs(ctx, b.ListDirectories, "sources")
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(sources))
	for _, source := range sources {
		nameDirs, err := b.ListDirectories(ctx, "sources/"+source)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, nd := range nameDirs {
			names = append(names, strings.TrimPrefix(nd, "snapshot_name="))
		}
		out[source] = names
	}
	return out, nil
}

func isNotFound(err error) bool {
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}

// retryableS3Error marks S3 failures as retryable for pkg/retry. Only the
// AccessDenied, InvalidAccessKeyId, SignatureDoesNotMatch and NoSuchBucket
// error codes fail immediately; every other error, including other 4xx
// responses, is retried.
type retryableS3Error struct{ err error }

func (e *retryableS3Error) Error() string { return e.err.Error() }
func (e *retryableS3Error) Unwrap() error { return e.err }
func (e *retryableS3Error) Retryable() bool {
	var apiErr smithy.APIError
	if errors.As(e.err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "NoSuchBucket":
			return false
		}
	}
	return true
}
