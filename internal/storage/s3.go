package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// cacheControl is applied to every uploaded artifact. Keys embed the job
// identifier, so objects are immutable once written.
const cacheControl = "public, max-age=31536000, immutable"

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
	Public          bool   // Whether uploaded objects are publicly readable
	SignedURLTTL    time.Duration
}

// S3Store publishes artifacts to an S3 bucket. URL issuance follows the
// deployment policy in S3Config: permanent object URLs when the bucket is
// public, presigned GET URLs otherwise.
type S3Store struct {
	client       *s3.Client
	presigner    *s3.PresignClient
	bucket       string
	region       string
	public       bool
	signedURLTTL time.Duration
}

// Compile-time check that S3Store implements ObjectStore.
var _ ObjectStore = (*S3Store)(nil)

// NewS3Store creates a new S3Store from the given configuration.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	ttl := cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &S3Store{
		client:       client,
		presigner:    s3.NewPresignClient(client),
		bucket:       cfg.Bucket,
		region:       cfg.Region,
		public:       cfg.Public,
		signedURLTTL: ttl,
	}, nil
}

// Public reports whether uploaded objects are publicly readable.
func (s *S3Store) Public() bool {
	return s.public
}

// PublicURL returns the permanent URL for a key.
func (s *S3Store) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// UploadFile uploads one local file and returns its retrievable URL.
func (s *S3Store) UploadFile(ctx context.Context, localPath, key, contentType string) (string, error) {
	if err := s.putFile(ctx, localPath, key, contentType); err != nil {
		return "", err
	}

	if s.public {
		return s.PublicURL(key), nil
	}
	return s.signedURL(ctx, key)
}

// UploadTree uploads every file under localDir, preserving relative paths
// under prefix, and returns the uploaded keys.
func (s *S3Store) UploadTree(ctx context.Context, localDir, prefix string, contentTypes map[string]string) ([]string, error) {
	var uploaded []string

	err := filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		key := prefix + "/" + filepath.ToSlash(rel)

		contentType := contentTypes[strings.ToLower(filepath.Ext(path))]
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		if err := s.putFile(ctx, path, key, contentType); err != nil {
			return err
		}
		uploaded = append(uploaded, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upload tree %s: %w", localDir, err)
	}

	return uploaded, nil
}

// putFile uploads one file to the bucket.
func (s *S3Store) putFile(ctx context.Context, localPath, key, contentType string) error {
	f, err := os.Open(localPath) // #nosec G304 - path is produced by the pipeline, not user input
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         f,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// signedURL issues a time-limited GET URL for a key.
func (s *S3Store) signedURL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.signedURLTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}
