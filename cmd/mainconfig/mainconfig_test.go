package mainconfig

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/leasing-ai-platform/internal/config"
)

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:           "us-west-2",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localstack:4566",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("LoadAWSConfig: %v", err)
	}
	if awsCfg.Region != "us-west-2" {
		t.Fatalf("region = %q", awsCfg.Region)
	}

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "test" {
		t.Fatalf("access key = %q", creds.AccessKeyID)
	}

	endpoint, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint(sqs.ServiceID, "us-west-2")
	if err != nil {
		t.Fatalf("resolve sqs: %v", err)
	}
	if endpoint.URL != "http://localstack:4566" {
		t.Fatalf("sqs endpoint = %q", endpoint.URL)
	}

	_, err = awsCfg.EndpointResolverWithOptions.ResolveEndpoint(bedrockruntime.ServiceID, "us-west-2")
	var notFound *aws.EndpointNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("bedrock should use the default endpoint, got %v", err)
	}
}

func TestLoadAWSConfigWithoutOverride(t *testing.T) {
	awsCfg, err := LoadAWSConfig(context.Background(), &appconfig.Config{AWSRegion: "us-east-1"})
	if err != nil {
		t.Fatalf("LoadAWSConfig: %v", err)
	}
	if awsCfg.EndpointResolverWithOptions != nil {
		t.Fatalf("expected no custom resolver")
	}
}
