package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/telehealth-ai-platform/internal/config"
)

func TestLoadAWSConfig_StaticCredentialsAndLocalEndpoint(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:           "us-west-2",
		AWSAccessKeyID:      "test-key",
		AWSSecretAccessKey:  "test-secret",
		AWSEndpointOverride: " http://localhost:4566 ",
	}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-key", creds.AccessKeyID)

	require.NotNil(t, awsCfg.EndpointResolverWithOptions)
	ep, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint(sqs.ServiceID, "us-west-2")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4566", ep.URL)
	assert.Equal(t, "us-west-2", ep.SigningRegion)
}

func TestLoadAWSConfig_NoOverrideKeepsDefaultResolver(t *testing.T) {
	awsCfg, err := LoadAWSConfig(context.Background(), &appconfig.Config{AWSRegion: "us-east-1"})
	require.NoError(t, err)
	assert.Nil(t, awsCfg.EndpointResolverWithOptions)
}

func TestLoadAWSConfig_NilConfig(t *testing.T) {
	_, err := LoadAWSConfig(context.Background(), nil)
	assert.Error(t, err)
}

func TestLocalEndpointResolver_BedrockNotOverridden(t *testing.T) {
	resolver := localEndpointResolver("http://localhost:4566", "us-east-1")

	_, err := resolver.ResolveEndpoint(bedrockruntime.ServiceID, "us-east-1")
	var notFound *aws.EndpointNotFoundError
	assert.ErrorAs(t, err, &notFound)

	ep, err := resolver.ResolveEndpoint(s3.ServiceID, "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, "aws", ep.PartitionID)
}

func TestStaticCredentials_RequiresBothHalves(t *testing.T) {
	_, ok := staticCredentials(&appconfig.Config{AWSAccessKeyID: "key"})
	assert.False(t, ok)
	_, ok = staticCredentials(&appconfig.Config{AWSAccessKeyID: "key", AWSSecretAccessKey: "  "})
	assert.False(t, ok)
	_, ok = staticCredentials(&appconfig.Config{AWSAccessKeyID: "key", AWSSecretAccessKey: "secret"})
	assert.True(t, ok)
}
