package backup

import (
	"context"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/treeaudit/pkg/errors"
)

// S3Config configures the connection to the backup bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Uploader uploads objects to an S3 bucket.
type S3Uploader struct {
	fs     afero.Fs
	client *minio.Client
	bucket string
	region string

	initOnce sync.Once
	initErr  error
}

// NewS3Uploader creates an uploader that reads local files from `fs`.
func NewS3Uploader(fs afero.Fs, cfg S3Config) (*S3Uploader, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.MissingFieldError{Field: "endpoint"}
	}
	access := strings.TrimSpace(cfg.AccessKey)
	if access == "" {
		return nil, errors.MissingFieldError{Field: "AWS_ACCESS_KEY_ID"}
	}
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errors.MissingFieldError{Field: "AWS_SECRET_ACCESS_KEY"}
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.MissingFieldError{Field: "bucket"}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.WithContext(err, "init s3 client")
	}

	return &S3Uploader{
		fs:     fs,
		client: client,
		bucket: bucket,
		region: cfg.Region,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist yet.
func (u *S3Uploader) EnsureBucket(ctx context.Context) error {
	u.initOnce.Do(func() {
		exists, err := u.client.BucketExists(ctx, u.bucket)
		if err != nil {
			u.initErr = bucketError(u.bucket, err)
			return
		}

		if exists {
			log.WithField("bucket", u.bucket).Debug("Bucket already exists")
			return
		}

		err = u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region})
		if err != nil {
			u.initErr = bucketError(u.bucket, err)
			return
		}
		log.WithField("bucket", u.bucket).Info("Created bucket")
	})
	return u.initErr
}

// Upload uploads a single object.
func (u *S3Uploader) Upload(ctx context.Context, obj Object) error {
	f, err := u.fs.Open(obj.LocalPath)
	if err != nil {
		return errors.WithContext(err, "open")
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, u.bucket, obj.Key, f, obj.SizeBytes, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return errors.WithContext(err, "put object")
}

func bucketError(bucket string, err error) error {
	if minio.ToErrorResponse(err).Code == "AccessDenied" {
		return errors.NewFriendlyError("Access denied to bucket %q. "+
			"Please check your AWS credentials and permissions.", bucket)
	}
	return errors.WithContext(err, "check bucket")
}
