package probe

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/justapithecus/drover/log"
	"github.com/justapithecus/drover/types"
)

// bucketHeader is the slice of the S3 API the probe needs; satisfied by
// *s3.Client and by test fakes.
type bucketHeader interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3 measures latency with HeadBucket round trips. Non-latency fields are
// copied from Base.
type S3 struct {
	// Bucket is the bucket to probe.
	Bucket string
	// Region is the AWS region; empty uses the default chain.
	Region string
	// Base supplies the configured non-latency fields.
	Base types.NetworkConditions
	// Samples overrides the round-trip count (default 3).
	Samples int

	Logger *log.Logger

	// client overrides the SDK client in tests.
	client bucketHeader
}

// NewS3 creates an S3 latency probe using the AWS SDK default credential
// chain.
func NewS3(ctx context.Context, bucket, region string, base types.NetworkConditions, logger *log.Logger) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("probe: bucket is required")
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("probe: load AWS config: %w", err)
	}

	return &S3{
		Bucket: bucket,
		Region: region,
		Base:   base,
		Logger: logger,
		client: s3.NewFromConfig(awsConfig),
	}, nil
}

// Sample performs the HeadBucket round trips and returns Base with the
// measured mean latency filled in.
func (p *S3) Sample(ctx context.Context) (types.NetworkConditions, error) {
	if p.client == nil {
		return types.NetworkConditions{}, fmt.Errorf("probe: s3 client not initialized")
	}
	samples := p.Samples
	if samples <= 0 {
		samples = DefaultSamples
	}

	latency, err := meanLatency(ctx, samples, func(ctx context.Context) error {
		_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{
			Bucket: aws.String(p.Bucket),
		})
		return err
	})
	if err != nil {
		return types.NetworkConditions{}, fmt.Errorf("probe: head bucket %s: %w", p.Bucket, err)
	}

	out := p.Base
	out.Latency = latency
	p.Logger.Debug("latency probed", map[string]any{
		"bucket":  p.Bucket,
		"latency": latency.String(),
	})
	return out, nil
}

var _ Sampler = (*Static)(nil)
var _ Sampler = (*HTTP)(nil)
var _ Sampler = (*S3)(nil)
