// Package minio is the traced S3/MinIO client behind the journal's archive
// sink. Journals are uploaded as newline-delimited JSON objects.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

const tracerName = "github.com/StricklySoft/stricklysoft-apitest/pkg/clients/minio"

// ObjectStore is the subset of *minio.Client used here.
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

var _ ObjectStore = (*minio.Client)(nil)

// Client wraps an [ObjectStore] with tracing and sserr error codes.
type Client struct {
	store  ObjectStore
	config *Config
	tracer trace.Tracer
}

// NewClient validates cfg, creates the minio-go client and probes the
// server with BucketExists.
//
// Error codes returned:
//   - [sserr.CodeValidation]: invalid configuration
//   - [sserr.CodeUnavailableDependency]: cannot reach the server
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidation, "minio: invalid configuration")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey.Value(), ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalDatabase, "minio: failed to create client")
	}
	if _, err := mc.BucketExists(ctx, healthProbeBucket); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "minio: failed to connect to server")
	}
	return NewFromStore(mc, &cfg), nil
}

// NewFromStore wraps an existing ObjectStore. cfg may be nil.
func NewFromStore(store ObjectStore, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{
		store:  store,
		config: cfg,
		tracer: otel.Tracer(tracerName),
	}
}

// Bucket returns the configured journal bucket.
func (c *Client) Bucket() string {
	if c.config.Bucket == "" {
		return DefaultBucket
	}
	return c.config.Bucket
}

// EnsureBucket creates bucket unless it already exists.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	ctx, span := c.startSpan(ctx, "EnsureBucket", bucket, "BucketExists/MakeBucket "+bucket)
	exists, err := c.store.BucketExists(ctx, bucket)
	if err == nil && !exists {
		err = c.store.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region})
	}
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "minio: ensure bucket failed")
	}
	return nil
}

// Upload stores data under bucket/object.
func (c *Client) Upload(ctx context.Context, bucket, object string, data []byte, contentType string) (minio.UploadInfo, error) {
	ctx, span := c.startSpan(ctx, "Upload", bucket, fmt.Sprintf("PUT %s/%s", bucket, object))
	info, err := c.store.PutObject(ctx, bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	finishSpan(span, err)
	if err != nil {
		return info, wrapError(err, "minio: put object failed")
	}
	return info, nil
}

// Download reads bucket/object fully.
func (c *Client) Download(ctx context.Context, bucket, object string) ([]byte, error) {
	ctx, span := c.startSpan(ctx, "Download", bucket, fmt.Sprintf("GET %s/%s", bucket, object))
	obj, err := c.store.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	var data []byte
	if err == nil {
		data, err = io.ReadAll(obj)
		_ = obj.Close()
	}
	finishSpan(span, err)
	if err != nil {
		return nil, wrapError(err, "minio: get object failed")
	}
	return data, nil
}

// List returns the object names under prefix.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	ctx, span := c.startSpan(ctx, "List", bucket, fmt.Sprintf("LIST %s/%s", bucket, prefix))
	var names []string
	var err error
	for info := range c.store.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			err = info.Err
			break
		}
		names = append(names, info.Key)
	}
	finishSpan(span, err)
	if err != nil {
		return nil, wrapError(err, "minio: list objects failed")
	}
	return names, nil
}

// Health probes the server, applying [DefaultHealthTimeout] when ctx has
// no deadline.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "Health", "", "BucketExists "+healthProbeBucket)
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}
	_, err := c.store.BucketExists(ctx, healthProbeBucket)
	finishSpan(span, err)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency, "minio: health check failed")
	}
	return nil
}

func (c *Client) startSpan(ctx context.Context, operationName, bucketName, statement string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "minio."+operationName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", "minio"),
		attribute.String("db.name", bucketName),
		attribute.String("db.statement", truncateStatement(statement)),
	)
	return ctx, span
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func wrapError(err error, message string) *sserr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sserr.Wrap(err, sserr.CodeTimeoutDatabase, message)
	}
	return sserr.Wrap(err, sserr.CodeInternalDatabase, message)
}
