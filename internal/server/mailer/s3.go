package mailer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var loadDefaultAWSConfig = config.LoadDefaultConfig

// S3Config addresses an S3 compatible bucket (e.g. MinIO) used as a mail drop
// box that a relay picks messages up from.
type S3Config struct {
	RootUser     string
	RootPassword string
	Bucket       string
	Region       string
	BaseEndpoint string
	From         string
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mailer stores every message as an .eml object under outbox/.
type S3Mailer struct {
	cfg    S3Config
	client objectPutter
}

func NewS3Mailer(ctx context.Context, c S3Config) (*S3Mailer, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.RootUser,
			c.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Mailer{cfg: c, client: client}, nil
}

func ObjectKey(m Message) string {
	d := m.Date.UTC()
	return fmt.Sprintf("outbox/%d/%02d/%02d/%s.eml", d.Year(), d.Month(), d.Day(), m.ID)
}

func (m *S3Mailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := NewMessage(m.cfg.From, to, subject, htmlBody)
	body := msg.Bytes()

	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(ObjectKey(msg)),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("message/rfc822"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", ObjectKey(msg), err)
	}
	return nil
}
