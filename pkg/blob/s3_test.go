package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	bucket, key, body, contentType string
	err                            error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket, f.key = *in.Bucket, *in.Key
	if in.ContentType != nil {
		f.contentType = *in.ContentType
	}
	data, _ := io.ReadAll(in.Body)
	f.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	tests := []struct {
		prefix, want string
	}{
		{"", "clean_Enrolment_combined.csv"},
		{"cleaned", "cleaned/clean_Enrolment_combined.csv"},
		{"/cleaned/2026/", "cleaned/2026/clean_Enrolment_combined.csv"},
	}
	for _, tt := range tests {
		p := &Publisher{prefix: tt.prefix}
		if got := p.Key("clean_Enrolment_combined.csv"); got != tt.want {
			t.Errorf("Key with prefix %q = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestPublish(t *testing.T) {
	local := filepath.Join(t.TempDir(), "out.csv")
	os.WriteFile(local, []byte("state,count\nGoa,1\n"), 0o644)

	fake := &fakeS3{}
	p := &Publisher{client: fake, bucket: "uidai", prefix: "cleaned"}
	if err := p.Publish(context.Background(), local, "out.csv"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if fake.bucket != "uidai" || fake.key != "cleaned/out.csv" {
		t.Errorf("put %s/%s", fake.bucket, fake.key)
	}
	if fake.body != "state,count\nGoa,1\n" || fake.contentType != "text/csv" {
		t.Errorf("body %q type %q", fake.body, fake.contentType)
	}
}

func TestPublish_Errors(t *testing.T) {
	p := &Publisher{client: &fakeS3{err: errors.New("denied")}, bucket: "uidai"}
	if err := p.Publish(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), "x.csv"); err == nil {
		t.Error("expected error for missing local file")
	}

	local := filepath.Join(t.TempDir(), "x.csv")
	os.WriteFile(local, []byte("a\n"), 0o644)
	if err := p.Publish(context.Background(), local, "x.csv"); err == nil {
		t.Error("expected error from PutObject")
	}
}

func TestNewS3_RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
