package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/user/zte-adk/pkg/engine"
)

// ErrReportExists is returned when a job already has a report; sinks are write-once
var ErrReportExists = errors.New("report already exists")

// Sink stores a report and returns its location
type Sink interface {
	Write(ctx context.Context, r Report) (string, error)
}

// ObjectKey is the sink-relative address of a job's report
func ObjectKey(jobID string) string {
	return path.Join("proposals", jobID, "report.json")
}

func encode(r Report) ([]byte, error) {
	if err := engine.ValidateJobID(r.JobID); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	return json.MarshalIndent(r, "", "  ")
}

// FileSink writes reports under a local directory
type FileSink struct {
	Dir string
}

func (s *FileSink) Write(ctx context.Context, r Report) (string, error) {
	data, err := encode(r)
	if err != nil {
		return "", err
	}
	target := filepath.Join(s.Dir, filepath.FromSlash(ObjectKey(r.JobID)))
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", err
	}

	file, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if os.IsExist(err) {
		return "", fmt.Errorf("%w: %s", ErrReportExists, target)
	}
	if err != nil {
		return "", fmt.Errorf("error writing report: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("error writing report: %w", err)
	}
	return target, file.Close()
}

// S3Sink uploads reports to an S3 bucket
type S3Sink struct {
	Bucket   string
	Client   s3iface.S3API
	Uploader s3manageriface.UploaderAPI
}

// NewS3Sink creates a sink using the default AWS credential chain
func NewS3Sink(bucket, region string) (*S3Sink, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	client := s3.New(sess)
	return &S3Sink{
		Bucket:   bucket,
		Client:   client,
		Uploader: s3manager.NewUploaderWithClient(client),
	}, nil
}

func (s *S3Sink) Write(ctx context.Context, r Report) (string, error) {
	data, err := encode(r)
	if err != nil {
		return "", err
	}
	key := ObjectKey(r.JobID)
	location := fmt.Sprintf("s3://%s/%s", s.Bucket, key)

	_, err = s.Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return "", fmt.Errorf("%w: %s", ErrReportExists, location)
	}
	if !isNotFound(err) {
		return "", fmt.Errorf("failed to check %s: %w", location, err)
	}

	_, err = s.Uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", location, err)
	}
	return location, nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case "NotFound", s3.ErrCodeNoSuchKey:
		return true
	}
	return false
}
