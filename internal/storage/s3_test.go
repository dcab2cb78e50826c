package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mealmates/backend/internal/config"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	if input.Body != nil {
		data, _ := io.ReadAll(input.Body)
		f.body = string(data)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{}, nil
}

func TestUploadAvatar(t *testing.T) {
	uploader := &fakeUploader{}
	store := newS3Storage(uploader, "avatars-bucket", "https://cdn.example.com/")
	store.newID = func() string { return "fixed" }

	location, err := store.UploadAvatar(context.Background(), "user-1", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if location != "https://cdn.example.com/avatars/user-1/fixed.png" {
		t.Fatalf("unexpected location %q", location)
	}
	if aws.ToString(uploader.input.Bucket) != "avatars-bucket" || aws.ToString(uploader.input.ContentType) != "image/png" {
		t.Fatalf("unexpected put input: %+v", uploader.input)
	}
	if uploader.body != "png-bytes" {
		t.Fatalf("unexpected body %q", uploader.body)
	}
}

func TestUploadAvatarWithoutBaseURL(t *testing.T) {
	store := newS3Storage(&fakeUploader{}, "bucket", "")
	store.newID = func() string { return "id" }

	location, err := store.UploadAvatar(context.Background(), "user-1", "image/jpeg", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if location != "avatars/user-1/id.jpg" {
		t.Fatalf("unexpected location %q", location)
	}
}

func TestUploadAvatarFailures(t *testing.T) {
	store := newS3Storage(&fakeUploader{}, "bucket", "")
	if _, err := store.UploadAvatar(context.Background(), "user-1", "text/plain", strings.NewReader("x")); err == nil {
		t.Fatal("expected unsupported content type error")
	}
	if _, err := store.UploadAvatar(context.Background(), "", "image/png", strings.NewReader("x")); err == nil {
		t.Fatal("expected empty user id error")
	}

	boom := errors.New("boom")
	store = newS3Storage(&fakeUploader{err: boom}, "bucket", "")
	if _, err := store.UploadAvatar(context.Background(), "user-1", "image/png", strings.NewReader("x")); !errors.Is(err, boom) {
		t.Fatalf("expected upload error, got %v", err)
	}
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	if _, err := NewS3Storage(context.Background(), config.ObjectStoreConfig{}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}
