package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/go-cmp/cmp"

	"playground-go/internal/config"
)

// fakeS3 stores objects in a map. Multipart calls are not expected for the
// small archives used in tests.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bucket := aws.ToString(in.Bucket) + "/"
	var out s3.ListObjectsV2Output
	var keys []string
	for k := range f.objects {
		key, ok := strings.CutPrefix(k, bucket)
		if ok && strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return &out, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestSinks(t *testing.T) {
	sinks := map[string]func(t *testing.T) Sink{
		"filesystem": func(t *testing.T) Sink {
			s, err := NewFileSystemSink(filepath.Join(t.TempDir(), "archive"))
			if err != nil {
				t.Fatalf("NewFileSystemSink() error = %v", err)
			}
			return s
		},
		"memory": func(t *testing.T) Sink { return NewMemorySink() },
		"s3":     func(t *testing.T) Sink { return NewS3Sink(newFakeS3(), "bucket", "/exports/") },
	}

	for name, newSink := range sinks {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sink := newSink(t)

			if err := sink.Put(ctx, "b.json", strings.NewReader("two")); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := sink.Put(ctx, "a.json", strings.NewReader("one")); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := sink.Put(ctx, "a.json", strings.NewReader("one again")); err != nil {
				t.Fatalf("Put() overwrite error = %v", err)
			}

			var buf bytes.Buffer
			if err := sink.Get(ctx, "a.json", &buf); err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if buf.String() != "one again" {
				t.Errorf("Get() = %q, want overwritten content", buf.String())
			}

			names, err := sink.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if diff := cmp.Diff([]string{"a.json", "b.json"}, names); diff != "" {
				t.Errorf("List() mismatch (-want +got):\n%s", diff)
			}

			if err := sink.Get(ctx, "missing.json", io.Discard); !errors.Is(err, ErrArchiveNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrArchiveNotFound", err)
			}
			if err := sink.Put(ctx, "../escape", strings.NewReader("x")); err == nil {
				t.Error("Put() accepted a name with a separator")
			}
		})
	}
}

func TestS3SinkKeys(t *testing.T) {
	client := newFakeS3()
	sink := NewS3Sink(client, "bucket", "exports")
	if err := sink.Put(context.Background(), "a.json", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if _, ok := client.objects["bucket/exports/a.json"]; !ok {
		t.Errorf("objects = %v, want key under the prefix", client.objects)
	}
}

func TestFileSystemSinkSkipsTempFiles(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSystemSink(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}
	names, _ := sink.List(context.Background())
	if len(names) != 0 {
		t.Errorf("List() = %v, want temp files hidden", names)
	}
}

func TestNewSinkFromConfig(t *testing.T) {
	ctx := context.Background()

	sink, err := NewSinkFromConfig(ctx, config.ArchiveConfig{Type: "filesystem", Root: t.TempDir()})
	if err != nil {
		t.Fatalf("filesystem: %v", err)
	}
	if _, ok := sink.(*FileSystemSink); !ok {
		t.Errorf("got %T, want *FileSystemSink", sink)
	}

	if _, err := NewSinkFromConfig(ctx, config.ArchiveConfig{Type: "filesystem"}); err == nil {
		t.Error("filesystem without root should fail")
	}
	if _, err := NewSinkFromConfig(ctx, config.ArchiveConfig{Type: "s3"}); err == nil {
		t.Error("s3 without bucket should fail")
	}
	if _, err := NewSinkFromConfig(ctx, config.ArchiveConfig{Type: "tape"}); err == nil {
		t.Error("unknown type should fail")
	}

	sink, err = NewSinkFromConfig(ctx, config.ArchiveConfig{
		Type:              "s3",
		S3Bucket:          "bucket",
		S3Region:          "us-east-1",
		S3Endpoint:        "http://127.0.0.1:9000",
		S3AccessKeyID:     "key",
		S3SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("s3: %v", err)
	}
	if _, ok := sink.(*S3Sink); !ok {
		t.Errorf("got %T, want *S3Sink", sink)
	}
}
