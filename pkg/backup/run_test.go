package backup

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/treeaudit/pkg/errors"
)

type fakeUploader struct {
	bucketErr error
	failKeys  map[string]bool
	uploaded  []string

	// cancel, if set, is called after the given number of uploads.
	cancel      func()
	cancelAfter int
}

func (u *fakeUploader) EnsureBucket(ctx context.Context) error {
	return u.bucketErr
}

func (u *fakeUploader) Upload(ctx context.Context, obj Object) error {
	if u.failKeys[obj.Key] {
		return fmt.Errorf("connection reset")
	}
	u.uploaded = append(u.uploaded, obj.Key)
	if u.cancel != nil && len(u.uploaded) == u.cancelAfter {
		u.cancel()
	}
	return nil
}

func makeObjects(n int) (objects []Object) {
	for i := 0; i < n; i++ {
		objects = append(objects, Object{
			LocalPath: fmt.Sprintf("/docs/%d", i),
			Key:       fmt.Sprintf("docs/%d", i),
		})
	}
	return objects
}

func TestRun(t *testing.T) {
	uploader := &fakeUploader{}
	result, err := Run(context.Background(), uploader, makeObjects(12))
	require.NoError(t, err)
	assert.Equal(t, Result{Uploaded: 12}, result)
	assert.Len(t, uploader.uploaded, 12)
}

func TestRunPartialFailure(t *testing.T) {
	uploader := &fakeUploader{failKeys: map[string]bool{"docs/1": true}}
	result, err := Run(context.Background(), uploader, makeObjects(3))
	assert.Equal(t, errors.PartialFailure{Op: "backup", Failed: []string{"/docs/1"}}, err)
	assert.Equal(t, 2, result.Uploaded)
	assert.Equal(t, []string{"docs/0", "docs/2"}, uploader.uploaded)
}

func TestRunBucketError(t *testing.T) {
	bucketErr := errors.NewFriendlyError("access denied")
	uploader := &fakeUploader{bucketErr: bucketErr}
	_, err := Run(context.Background(), uploader, makeObjects(3))
	assert.Equal(t, bucketErr, errors.RootCause(err))
	assert.Empty(t, uploader.uploaded)
}

func TestRunInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	uploader := &fakeUploader{cancel: cancel, cancelAfter: 2}
	result, err := Run(ctx, uploader, makeObjects(5))
	assert.Equal(t, errors.ErrInterrupted, err)
	assert.Equal(t, Result{Uploaded: 2, Interrupted: true}, result)
}

func TestNewS3UploaderMissingFields(t *testing.T) {
	full := S3Config{
		Endpoint:  "s3.amazonaws.com",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "bucket",
	}

	tests := []struct {
		name   string
		modify func(*S3Config)
		field  string
	}{
		{"Endpoint", func(c *S3Config) { c.Endpoint = "" }, "endpoint"},
		{"AccessKey", func(c *S3Config) { c.AccessKey = " " }, "AWS_ACCESS_KEY_ID"},
		{"SecretKey", func(c *S3Config) { c.SecretKey = "" }, "AWS_SECRET_ACCESS_KEY"},
		{"Bucket", func(c *S3Config) { c.Bucket = "" }, "bucket"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := full
			test.modify(&cfg)
			_, err := NewS3Uploader(nil, cfg)
			assert.Equal(t, errors.MissingFieldError{Field: test.field}, err)
		})
	}

	uploader, err := NewS3Uploader(nil, full)
	require.NoError(t, err)
	assert.Equal(t, "bucket", uploader.bucket)
}
