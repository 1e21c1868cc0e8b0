package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/seaborne-data/restmed"
)

// s3ObjectClient is the slice of the S3 API the schema source uses.
type s3ObjectClient interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3SchemaSource fetches schema documents from an S3 bucket so deployments
// can share one schema set without baking files into the image.
type S3SchemaSource struct {
	client s3ObjectClient
	bucket string
	prefix string
	logger *zap.SugaredLogger
}

// NewS3SchemaSource builds a source against live AWS. Region falls back to
// the default credential chain when empty; explicit env credentials take
// precedence when present.
func NewS3SchemaSource(ctx context.Context, bucket, prefix, region string) (*S3SchemaSource, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, restmed.NewFileError("failed to load aws config", err)
	}
	if region != "" {
		awsCfg.Region = region
	}
	if key := os.Getenv("AWS_ACCESS_KEY_ID"); key != "" {
		awsCfg.Credentials = awscreds.NewStaticCredentialsProvider(key, os.Getenv("AWS_SECRET_ACCESS_KEY"), "")
	}
	return NewS3SchemaSourceWithClient(s3.NewFromConfig(awsCfg), bucket, prefix), nil
}

// NewS3SchemaSourceWithClient injects the S3 client, which is how the tests
// run without AWS.
func NewS3SchemaSourceWithClient(client s3ObjectClient, bucket, prefix string) *S3SchemaSource {
	return &S3SchemaSource{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: zap.S(),
	}
}

// FetchDocuments lists every schema object under the prefix and downloads
// its body, keyed by model name. Non-schema objects are skipped.
func (s *S3SchemaSource) FetchDocuments(ctx context.Context) (map[string][]byte, error) {
	documents := make(map[string][]byte)
	var continuation *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, restmed.NewFileError(fmt.Sprintf("failed to list s3://%s/%s", s.bucket, s.prefix), err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if !strings.HasSuffix(key, schemaFileSuffix) {
				continue
			}
			model := strings.TrimSuffix(path.Base(key), schemaFileSuffix)
			body, err := s.fetchObject(ctx, key)
			if err != nil {
				return nil, err
			}
			documents[model] = body
		}
		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		continuation = page.NextContinuationToken
	}

	if len(documents) == 0 {
		return nil, restmed.NewFileError(fmt.Sprintf("no schema documents under s3://%s/%s", s.bucket, s.prefix), nil)
	}
	s.logger.Infow("schema documents fetched from s3", "bucket", s.bucket, "prefix", s.prefix, "count", len(documents))
	return documents, nil
}

func (s *S3SchemaSource) fetchObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, restmed.NewFileError(fmt.Sprintf("failed to get s3://%s/%s", s.bucket, key), err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, restmed.NewFileError(fmt.Sprintf("failed to read s3://%s/%s", s.bucket, key), err)
	}
	return body, nil
}
