package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/config"
	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/logging"
)

//ObjectPutter is the part of the S3 client that the archiver uses
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

//Archiver uploads generated reports to an S3 bucket
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	log    logging.Logger
	now    func() time.Time
}

//NewS3Client creates an S3 client from the default AWS credential chain. A configured
//endpoint switches the client to path style addressing against that endpoint.
func NewS3Client(ctx context.Context, cfg config.Export) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws configuration: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

//NewArchiver creates an archiver that stores reports below the configured prefix
func NewArchiver(client ObjectPutter, cfg config.Export, log logging.Logger) *Archiver {
	return &Archiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log,
		now:    time.Now,
	}
}

//Archive uploads the workbook and returns the object key it was stored under
func (a *Archiver) Archive(ctx context.Context, fileName string, content []byte) (string, error) {
	key := path.Join(a.prefix, a.now().UTC().Format("2006/01/02"), fileName)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", key, a.bucket, err)
	}

	a.log.Infof("archived report %s to bucket %s", key, a.bucket)

	return key, nil
}
