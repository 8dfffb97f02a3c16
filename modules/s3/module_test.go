package s3

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
)

type fakeBucket struct {
	objects map[string]string
	types   map[string]string
	err     error
}

func (f *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) != aws.ToInt64(in.ContentLength) {
		return nil, errors.New("content length mismatch")
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = string(body)
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestUpload(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	bucket := &fakeBucket{objects: map[string]string{}, types: map[string]string{}}
	m := &Module{NewClient: func(context.Context, *Input) (PutObjectAPI, error) { return bucket, nil }}

	args := &model.HookArgs{
		Group:   "db",
		Name:    "users",
		Columns: []string{"id"},
		Batches: func(yield func([]model.Record, error) bool) {
			yield([]model.Record{{"id": int64(1)}, {"id": int64(2)}}, nil)
		},
	}

	t.Run("csv", func(t *testing.T) {
		require.NoError(t, m.Upload(ctx, &Input{Bucket: "seed", Prefix: "exports"}, args))
		assert.Equal(t, "id\n1\n2\n", bucket.objects["seed/exports/users.csv"])
		assert.Equal(t, "text/csv", bucket.types["seed/exports/users.csv"])
	})

	t.Run("json", func(t *testing.T) {
		require.NoError(t, m.Upload(ctx, &Input{Bucket: "seed", Format: "json"}, args))
		assert.Equal(t, "{\"id\":1}\n{\"id\":2}\n", bucket.objects["seed/users.json"])
	})

	t.Run("only export hooks", func(t *testing.T) {
		err := m.Upload(ctx, &Input{Bucket: "seed"}, &model.HookArgs{Group: "db"})
		assert.ErrorContains(t, err, "only supported in export hooks")
	})

	t.Run("upload failure", func(t *testing.T) {
		bucket.err = errors.New("access denied")
		defer func() { bucket.err = nil }()
		err := m.Upload(ctx, &Input{Bucket: "seed"}, args)
		assert.ErrorContains(t, err, "access denied")
	})
}
