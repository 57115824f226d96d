// Package s3 stores task files as objects of a S3 compatible bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Config struct {
	Key    string
	Secret string
	Region string
	Bucket string
	// Endpoint selects a S3 compatible provider instead of AWS.
	Endpoint string
	Debug    bool
}

type Store struct {
	client *s3.Client
	bucket string
	debug  bool
}

// New connects to the bucket and checks that it exists. Without key and
// secret the credentials of the EC2 instance role are used.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	var provider aws.CredentialsProvider
	if cfg.Key == "" && cfg.Secret == "" {
		provider = ec2rolecreds.New()
	} else {
		provider = credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, "")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(provider),
		config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("s3: couldn't load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("s3: couldn't head bucket %s: %w", cfg.Bucket, err)
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		debug:  cfg.Debug,
	}, nil
}

var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".json": "application/json",
}

// ContentType returns the content type of a file name.
func ContentType(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	ct, ok := contentTypes[ext]
	if !ok {
		return "", fmt.Errorf("s3: unknown content type for extension %q", ext)
	}
	return ct, nil
}

func (s *Store) Upload(ctx context.Context, path, name string) error {
	ct, err := ContentType(path)
	if err != nil {
		return err
	}
	return retry(ctx, s.debug, func() error {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("s3: couldn't open %s: %w", path, err)
		}
		defer f.Close()
		if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(name),
			Body:        f,
			ContentType: aws.String(ct),
		}); err != nil {
			return fmt.Errorf("s3: couldn't put object %s: %w", name, err)
		}
		if s.debug {
			log.Printf("s3: stored %s/%s\n", s.bucket, name)
		}
		return nil
	})
}

func (s *Store) Download(ctx context.Context, path, name string) error {
	return retry(ctx, s.debug, func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(name),
		})
		if err != nil {
			return fmt.Errorf("s3: couldn't get object %s: %w", name, err)
		}
		defer out.Body.Close()
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("s3: couldn't create %s: %w", path, err)
		}
		defer f.Close()
		if _, err := io.Copy(f, out.Body); err != nil {
			return fmt.Errorf("s3: couldn't write %s: %w", path, err)
		}
		return nil
	})
}

var backoff = []time.Duration{
	5 * time.Second,
	15 * time.Second,
}

// retry runs fn until it succeeds, once per backoff step plus one.
func retry(ctx context.Context, debug bool, fn func() error) error {
	var err error
	for i := 0; ; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i >= len(backoff) {
			return err
		}
		if debug {
			log.Printf("%v (retrying in %s)\n", err, backoff[i])
		}
		t := time.NewTimer(backoff[i])
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
