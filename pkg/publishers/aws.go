package publishers

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// loadAWSConfig resolves AWS settings for a publisher. Static keys, when both
// are set, replace the default credential chain.
func loadAWSConfig(ctx context.Context, c AWSConfig) (aws.Config, error) {
	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(c.Region)}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}
	return awscfg.LoadDefaultConfig(ctx, opts...)
}

// endpointOverride returns the base endpoint to set on a service client, or
// nil to keep the resolver default.
func endpointOverride(c AWSConfig) *string {
	if c.Endpoint == "" {
		return nil
	}
	return aws.String(c.Endpoint)
}

// isFIFO reports whether a queue URL or topic ARN names a FIFO resource.
func isFIFO(target string) bool {
	return strings.HasSuffix(target, ".fifo")
}
