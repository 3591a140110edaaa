package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"stockwatch/internal/domain"
)

// S3Config holds the settings of the S3-compatible chart mirror
type S3Config struct {
	Endpoint  string // Custom endpoint for R2/minio style providers, empty for AWS
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3Store mirrors charts to an S3-compatible bucket after writing them
// locally. The returned artifact carries the object URL instead of the bytes,
// keeping push payloads small.
type S3Store struct {
	local    *LocalStore
	uploader *manager.Uploader
	cfg      S3Config
	log      zerolog.Logger
}

// NewS3Store creates the mirroring store on top of a local store
func NewS3Store(local *LocalStore, cfg S3Config, log zerolog.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		local:    local,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		log:      log.With().Str("store", "charts_s3").Logger(),
	}, nil
}

// Save writes the chart locally, then uploads it. A failed upload falls back
// to the local artifact; chart mirroring is never worth failing an alert.
func (s *S3Store) Save(ctx context.Context, symbol string, chart *domain.ChartArtifact) (*domain.ChartArtifact, error) {
	localArtifact, err := s.local.Save(ctx, symbol, chart)
	if err != nil {
		return nil, err
	}

	key := "charts/" + localArtifact.Filename
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(chart.Data),
		ContentType: aws.String(chart.ContentType),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Chart upload failed, keeping local artifact")
		return localArtifact, nil
	}

	url := s.objectURL(key)
	s.log.Debug().Str("symbol", symbol).Str("url", url).Msg("Chart mirrored")

	return &domain.ChartArtifact{
		Filename:    localArtifact.Filename,
		ContentType: localArtifact.ContentType,
		URL:         url,
	}, nil
}

func (s *S3Store) objectURL(key string) string {
	if s.cfg.Endpoint != "" {
		return strings.TrimSuffix(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
