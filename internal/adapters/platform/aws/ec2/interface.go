package ec2

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

//go:generate mockery --name EC2ClientInterface --output ../../../../../mocks --outpkg mocks --case underscore
//go:generate mockery --name EC2InstancesPaginator --output ../../../../../mocks --outpkg mocks --case underscore

// EC2ClientInterface is the subset of the EC2 API the client drives.
type EC2ClientInterface interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	RunInstances(ctx context.Context, params *ec2.RunInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
}

type EC2InstancesPaginator interface {
	HasMorePages() bool
	NextPage(ctx context.Context, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// STSClientInterface defines the method needed from the AWS SDK STS client.
type STSClientInterface interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// PaginatorFactory builds the DescribeInstances paginator for one listing.
type PaginatorFactory func(client EC2ClientInterface, input *ec2.DescribeInstancesInput) EC2InstancesPaginator

func defaultPaginatorFactory(client EC2ClientInterface, input *ec2.DescribeInstancesInput) EC2InstancesPaginator {
	return ec2.NewDescribeInstancesPaginator(client, input)
}
