package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Default timeouts for object-store operations.
const (
	DefaultMetadataTimeout = 10 * time.Second // list/stat/delete
	DefaultDataTimeout     = 60 * time.Second // get/put (data transfer)
)

// ObjectConfig holds connection and timeout settings for ObjectBackend.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix is prepended to every cache key when deriving an object
	// name, so one bucket can host multiple logical caches.
	Prefix string

	// MetadataTimeout bounds list/stat/delete calls. Defaults to 10s.
	MetadataTimeout time.Duration
	// DataTimeout bounds get/put calls. Defaults to 60s.
	DataTimeout time.Duration
}

// ObjectBackend is a Backend storing each cache record as a JSON
// object in an S3-compatible bucket, keyed by cache key.
type ObjectBackend struct {
	client          *minio.Client
	bucket          string
	prefix          string
	metadataTimeout time.Duration
	dataTimeout     time.Duration
}

// NewObjectBackend connects to the given S3-compatible endpoint and
// auto-creates the bucket if it doesn't exist.
func NewObjectBackend(ctx context.Context, cfg ObjectConfig) (*ObjectBackend, error) {
	metadataTimeout := cfg.MetadataTimeout
	if metadataTimeout == 0 {
		metadataTimeout = DefaultMetadataTimeout
	}
	dataTimeout := cfg.DataTimeout
	if dataTimeout == 0 {
		dataTimeout = DefaultDataTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: metadataTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	o := &ObjectBackend{
		client:          client,
		bucket:          cfg.Bucket,
		prefix:          cfg.Prefix,
		metadataTimeout: metadataTimeout,
		dataTimeout:     dataTimeout,
	}

	if err := o.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *ObjectBackend) objectName(key string) string {
	if o.prefix == "" {
		return key
	}
	return o.prefix + "/" + key
}

func (o *ObjectBackend) withMetadataTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.metadataTimeout)
}

func (o *ObjectBackend) withDataTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.dataTimeout)
}

func (o *ObjectBackend) ensureBucket(ctx context.Context) error {
	ctx, cancel := o.withMetadataTimeout(ctx)
	defer cancel()

	exists, err := o.client.BucketExists(ctx, o.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", o.bucket, err)
	}
	if !exists {
		if err := o.client.MakeBucket(ctx, o.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", o.bucket, err)
		}
	}
	return nil
}

func (o *ObjectBackend) Retrieve(ctx context.Context, key string) (map[string]any, error) {
	ctx, cancel := o.withDataTimeout(ctx)
	defer cancel()

	obj, err := o.client.GetObject(ctx, o.bucket, o.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}

	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode object %s: %w", key, err)
	}
	return rec, nil
}

func (o *ObjectBackend) RetrieveAll(ctx context.Context) (map[string]map[string]any, error) {
	keys, err := o.RetrieveKeys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]any, len(keys))
	for _, k := range keys {
		rec, err := o.Retrieve(ctx, k)
		if err != nil {
			return nil, err
		}
		out[k] = rec
	}
	return out, nil
}

func (o *ObjectBackend) RetrieveKeys(ctx context.Context) ([]string, error) {
	ctx, cancel := o.withMetadataTimeout(ctx)
	defer cancel()

	opts := minio.ListObjectsOptions{Prefix: o.prefix, Recursive: true}
	var keys []string
	for obj := range o.client.ListObjects(ctx, o.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		key := obj.Key
		if o.prefix != "" {
			key = key[len(o.prefix)+1:]
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (o *ObjectBackend) Update(ctx context.Context, key string, data map[string]any) error {
	ctx, cancel := o.withDataTimeout(ctx)
	defer cancel()

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode object %s: %w", key, err)
	}

	_, err = o.client.PutObject(ctx, o.bucket, o.objectName(key), bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Delete removes an object. Object-store deletes are idempotent:
// deleting a non-existent key is not an error.
func (o *ObjectBackend) Delete(ctx context.Context, key string) error {
	ctx, cancel := o.withMetadataTimeout(ctx)
	defer cancel()

	if err := o.client.RemoveObject(ctx, o.bucket, o.objectName(key), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

func (o *ObjectBackend) DeleteAll(ctx context.Context) error {
	keys, err := o.RetrieveKeys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := o.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (o *ObjectBackend) Verify(ctx context.Context, key string) (bool, error) {
	ctx, cancel := o.withMetadataTimeout(ctx)
	defer cancel()

	_, err := o.client.StatObject(ctx, o.bucket, o.objectName(key), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s: %w", key, err)
	}
	return true, nil
}

func (o *ObjectBackend) IsAvailable(ctx context.Context) bool {
	ctx, cancel := o.withMetadataTimeout(ctx)
	defer cancel()
	exists, err := o.client.BucketExists(ctx, o.bucket)
	return err == nil && exists
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey"
}
