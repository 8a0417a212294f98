package objectstore

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// Usage is the object count and total size of a bucket, all versions included.
type Usage struct {
	Objects int64
	Size    int64
}

func (u Usage) String() string {
	return fmt.Sprintf("%d objects / %d bytes", u.Objects, u.Size)
}

type UsageReader interface {
	Usage(ctx context.Context, alias, bucket string) (Usage, error)
}

// ListingUsage computes usage by listing every object version through the S3 API.
type ListingUsage struct {
	clients map[string]*minio.Client
}

func NewListingUsage(instances map[string]Instance) (*ListingUsage, error) {
	clients := make(map[string]*minio.Client)
	for alias, instance := range instances {
		client, err := minio.New(instance.Endpoint(), &minio.Options{
			Creds:  credentials.NewStaticV4(instance.AccessKey, instance.SecretKey, ""),
			Secure: instance.TLS,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "unable to create s3 client for '%s'", alias)
		}
		clients[alias] = client
	}
	return &ListingUsage{clients: clients}, nil
}

func (l *ListingUsage) Usage(ctx context.Context, alias, bucket string) (Usage, error) {
	client, found := l.clients[alias]
	if !found {
		return Usage{}, errors.Errorf("no s3 client for alias '%s'", alias)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var usage Usage
	for object := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true, WithVersions: true}) {
		if object.Err != nil {
			return Usage{}, errors.Wrapf(object.Err, "unable to list '%s/%s'", alias, bucket)
		}
		if object.IsDeleteMarker {
			continue
		}
		usage.Objects++
		usage.Size += object.Size
	}
	return usage, nil
}
