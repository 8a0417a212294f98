package archive

import (
	"context"
	"os"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/youwol/datamanager/kernel/model"
)

// S3Store keeps archives as objects <folder>/<name> of a bucket.
type S3Store struct {
	Bucket     string
	endpoint   string
	client     *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
}

func NewS3Store(cfg model.ArchiveS3Config) (*S3Store, error) {
	if err := model.Require(model.EnvArchiveS3Bucket, cfg.Bucket); err != nil {
		return nil, err
	}
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	if cfg.AccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create aws session")
	}
	client := s3.New(sess)
	return &S3Store{
		Bucket:     cfg.Bucket,
		endpoint:   cfg.Endpoint,
		client:     client,
		uploader:   s3manager.NewUploaderWithClient(client),
		downloader: s3manager.NewDownloaderWithClient(client),
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, localPath, folder, name string) error {
	key := path.Join(folder, name)
	exists, err := s.exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return errors.Errorf("an archive named '%s' already exists in folder '%s'", name, folder)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "unable to open '%s'", localPath)
	}
	defer func() { _ = f.Close() }()

	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/x-tar"),
	})
	if err != nil {
		return errors.Wrapf(err, "unable to upload '%s'", key)
	}
	logrus.Infof("uploaded archive to '%s'", out.Location)
	return nil
}

func (s *S3Store) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(s.Bucket)},
		func(page *s3.ListObjectsV2Output, _ bool) bool {
			for _, object := range page.Contents {
				key := aws.StringValue(object.Key)
				if !isArchive(key) {
					continue
				}
				folder := path.Dir(key)
				if folder == "." {
					folder = ""
				}
				entries = append(entries, Entry{Name: path.Base(key), Folder: folder, Size: aws.Int64Value(object.Size)})
			}
			return true
		})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list bucket '%s'", s.Bucket)
	}
	return entries, nil
}

func (s *S3Store) Download(ctx context.Context, entry Entry, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "unable to create '%s'", localPath)
	}
	defer func() { _ = f.Close() }()

	n, err := s.downloader.DownloadWithContext(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(entry.Key()),
	})
	if err != nil {
		return errors.Wrapf(err, "unable to download '%s'", entry.Key())
	}
	logrus.Infof("downloaded '%s' (%d bytes)", entry.Key(), n)
	return errors.Wrapf(f.Close(), "unable to close '%s'", localPath)
}

func (s *S3Store) Describe() map[string]string {
	return map[string]string{"backend": model.ArchiveBackendS3, "endpoint": s.endpoint, "bucket": s.Bucket}
}

func (s *S3Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) && (aerr.Code() == "NotFound" || aerr.Code() == s3.ErrCodeNoSuchKey) {
		return false, nil
	}
	return false, errors.Wrapf(err, "unable to check '%s'", key)
}
