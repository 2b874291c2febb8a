package media

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestUpload(t *testing.T) {
	putter := &fakePutter{}
	u := &S3Uploader{Client: putter, Bucket: "avatars", Region: "eu-central-1"}

	url, err := u.Upload(context.Background(), "avatars/bob.jpg", []byte("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://avatars.s3.eu-central-1.amazonaws.com/avatars/bob.jpg" {
		t.Errorf("unexpected url %q", url)
	}
	if *putter.input.Bucket != "avatars" || *putter.input.Key != "avatars/bob.jpg" || *putter.input.ContentType != "image/jpeg" {
		t.Errorf("unexpected input %+v", putter.input)
	}
	if string(putter.body) != "jpeg" {
		t.Errorf("unexpected body %q", putter.body)
	}
}

func TestUploadError(t *testing.T) {
	u := &S3Uploader{Client: &fakePutter{err: errors.New("denied")}, Bucket: "b"}

	if _, err := u.Upload(context.Background(), "k", nil, "image/jpeg"); err == nil {
		t.Fatal("expected error")
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		u    S3Uploader
		want string
	}{
		{S3Uploader{Bucket: "b", Region: "r"}, "https://b.s3.r.amazonaws.com/k.jpg"},
		{S3Uploader{Bucket: "b", Endpoint: "http://minio:9000/"}, "http://minio:9000/b/k.jpg"},
		{S3Uploader{Bucket: "b", PublicURL: "https://cdn.example.com/"}, "https://cdn.example.com/k.jpg"},
	}
	for _, tt := range tests {
		if got := tt.u.URL("k.jpg"); got != tt.want {
			t.Errorf("URL() = %q, want %q", got, tt.want)
		}
	}
}
