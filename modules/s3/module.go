// Package s3 implements the `s3` hook action, which renders a node to a
// tabular file and uploads it to an S3 compatible bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
	"github.com/vk/gridseed/internal/registry"
	"github.com/vk/gridseed/internal/tabular"
)

var contentTypes = map[string]string{
	tabular.CSV:     "text/csv",
	tabular.JSON:    "application/x-ndjson",
	tabular.Parquet: "application/vnd.apache.parquet",
}

// PutObjectAPI is the part of the S3 client the action uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Module implements the registry.Module interface for this package.
type Module struct {
	// NewClient builds the S3 client for an input. Defaults to an AWS SDK
	// client configured from the input and the environment.
	NewClient func(ctx context.Context, input *Input) (PutObjectAPI, error)
}

// Input defines the arguments of an s3 block.
type Input struct {
	Bucket string `hcl:"bucket"`
	// Prefix is prepended to the object key, e.g. "exports/2024/".
	Prefix          string `hcl:"prefix,optional"`
	Format          string `hcl:"format,optional"`
	Region          string `hcl:"region,optional"`
	Endpoint        string `hcl:"endpoint,optional"`
	PathStyle       bool   `hcl:"path_style,optional"`
	AccessKeyID     string `hcl:"access_key_id,optional"`
	SecretAccessKey string `hcl:"secret_access_key,optional"`
	SessionToken    string `hcl:"session_token,optional"`
}

// Upload is the handler for the 's3' action.
func (m *Module) Upload(ctx context.Context, input *Input, args *model.HookArgs) error {
	if args.Batches == nil {
		return fmt.Errorf("s3 action is only supported in export hooks")
	}
	format := input.Format
	if format == "" {
		format = tabular.CSV
	}
	if err := tabular.Validate(format); err != nil {
		return err
	}
	key := path.Join(input.Prefix, tabular.FileName(args.Name, format))
	logger := ctxlog.FromContext(ctx).With("bucket", input.Bucket, "key", key)

	newClient := m.NewClient
	if newClient == nil {
		newClient = NewClient
	}
	client, err := newClient(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create s3 client: %w", err)
	}

	tmp, err := os.CreateTemp("", "gridseed-*."+format)
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	w, err := tabular.NewWriter(format, tmp, args.Columns)
	if err != nil {
		return err
	}
	rows, err := tabular.Copy(w, args.Batches)
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}

	contentType := contentTypes[format]
	logger.Debug("Uploading node.", "rows", rows, "size", size, "contentType", contentType)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(input.Bucket),
		Key:           aws.String(key),
		Body:          tmp,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", input.Bucket, key, err)
	}
	logger.Info("📦 Node uploaded.", "node", args.Name, "rows", rows)
	return nil
}

// NewClient creates an AWS SDK client. Static credentials take precedence
// over the default credential chain.
func NewClient(ctx context.Context, input *Input) (PutObjectAPI, error) {
	var opts []func(*config.LoadOptions) error
	if input.Region != "" {
		opts = append(opts, config.WithRegion(input.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if input.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(input.AccessKeyID, input.SecretAccessKey, input.SessionToken),
		)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if input.Endpoint != "" {
			o.BaseEndpoint = aws.String(input.Endpoint)
		}
		o.UsePathStyle = input.PathStyle
	}), nil
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("s3", registry.Action(m.Upload))
}
