package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lms/core"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	ref, err := store.Save(ctx, "profiles", core.Upload{Filename: "me.PNG", Content: strings.NewReader("png-bytes")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "profiles/"))
	assert.True(t, strings.HasSuffix(ref, ".png"))

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(ref)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Delete(ctx, ref))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(ref)))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, ref))

	for _, bad := range []string{"", "../etc/passwd", "/abs", "a/../../b"} {
		assert.Equal(t, errBadRef, store.Delete(ctx, bad), bad)
	}
}

type fakeS3 struct {
	objects map[string]string
	failPut bool
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut {
		return nil, errors.New("access denied")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: make(map[string]string)}
	store := &s3Store{client: fake, bucket: "lms"}

	ref, err := store.Save(ctx, "profiles", core.Upload{Filename: "a.jpg", ContentType: "image/jpeg", Size: 3, Content: strings.NewReader("jpg")})
	require.NoError(t, err)
	assert.Equal(t, "jpg", fake.objects["lms/"+ref])

	require.NoError(t, store.Delete(ctx, ref))
	assert.Empty(t, fake.objects)
	assert.Equal(t, errBadRef, store.Delete(ctx, ""))

	fake.failPut = true
	_, err = store.Save(ctx, "profiles", core.Upload{Filename: "a.jpg", Content: strings.NewReader("jpg")})
	assert.Error(t, err)
}

func TestNewS3Store_requiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), core.StorageConfig{})
	assert.Error(t, err)
}
