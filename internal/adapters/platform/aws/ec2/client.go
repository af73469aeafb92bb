package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	awserrors "github.com/olusolaa/vm-reconciler/internal/adapters/platform/aws/errors"
	"github.com/olusolaa/vm-reconciler/internal/adapters/platform/limiter"
	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
	apperrors "github.com/olusolaa/vm-reconciler/internal/errors"
)

const (
	APIVersion   = "aws_ec2"
	resourceType = "EC2 instance"
)

type Config struct {
	Region           string            `mapstructure:"region" yaml:"region"`
	SubnetID         string            `mapstructure:"subnet_id" yaml:"subnet_id"`
	SecurityGroupIDs []string          `mapstructure:"security_group_ids" yaml:"security_group_ids"`
	KeyName          string            `mapstructure:"key_name" yaml:"key_name"`
	Filters          map[string]string `mapstructure:"filters" yaml:"filters"`
	RPS              int               `mapstructure:"-" yaml:"-"`
}

// Client implements ports.RemoteVMClient against the EC2 API.
type Client struct {
	ec2       EC2ClientInterface
	sts       STSClientInterface
	newPager  PaginatorFactory
	limiter   *limiter.Limiter
	logger    ports.Logger
	cfg       Config
	accountID string
}

func NewClient(ctx context.Context, cfg Config, logger ports.Logger) (*Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigValidation, "failed to load default AWS config")
	}
	return NewClientWithAPI(ec2.NewFromConfig(awsCfg), sts.NewFromConfig(awsCfg), nil, cfg, logger), nil
}

// NewClientWithAPI builds a client over already constructed SDK clients. A
// nil pager factory uses the SDK paginator.
func NewClientWithAPI(ec2Client EC2ClientInterface, stsClient STSClientInterface, pagers PaginatorFactory, cfg Config, logger ports.Logger) *Client {
	if pagers == nil {
		pagers = defaultPaginatorFactory
	}
	logger = logger.WithFields(map[string]any{"api": APIVersion})
	return &Client{
		ec2:      ec2Client,
		sts:      stsClient,
		newPager: pagers,
		limiter:  limiter.New(cfg.RPS, logger),
		logger:   logger,
		cfg:      cfg,
	}
}

func (c *Client) APIVersion() string {
	return APIVersion
}

func (c *Client) getAccountID(ctx context.Context) (string, error) {
	if c.accountID != "" {
		return c.accountID, nil
	}
	if c.sts == nil {
		return "", nil
	}
	output, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodePlatformAPIError, "failed to get AWS caller identity")
	}
	if output.Account == nil {
		return "", apperrors.New(apperrors.CodePlatformAPIError, "AWS caller identity response did not contain Account ID")
	}
	c.accountID = *output.Account
	return c.accountID, nil
}

func (c *Client) ListAllVirtualMachines(ctx context.Context) ([]domain.MachineRecord, error) {
	accountID, err := c.getAccountID(ctx)
	if err != nil {
		c.logger.Warnf(ctx, "Proceeding without AWS Account ID due to STS error: %v", err)
	}
	logger := c.logger.WithFields(map[string]any{"account_id": accountID})

	input := &ec2.DescribeInstancesInput{Filters: BuildEC2Filters(c.cfg.Filters)}
	records, err := c.describe(ctx, logger, input)
	if err != nil {
		return nil, err
	}
	logger.Debugf(ctx, "Finished paginating EC2 instances, found %d total.", len(records))
	return records, nil
}

// GetVirtualMachineByName looks a machine up by its Name tag. Terminated
// instances are treated as gone.
func (c *Client) GetVirtualMachineByName(ctx context.Context, name string) (*domain.MachineRecord, error) {
	input := &ec2.DescribeInstancesInput{Filters: NameFilters(name)}
	records, err := c.describe(ctx, c.logger, input)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	if len(records) > 1 {
		c.logger.Warnf(ctx, "Found %d live instances named %q, using %s", len(records), name, records[0].ID)
	}
	return &records[0], nil
}

func (c *Client) describe(ctx context.Context, logger ports.Logger, input *ec2.DescribeInstancesInput) ([]domain.MachineRecord, error) {
	paginator := c.newPager(c.ec2, input)

	var records []domain.MachineRecord
	pageNum := 0
	for paginator.HasMorePages() {
		select {
		case <-ctx.Done():
			logger.Warnf(ctx, "Context cancelled during EC2 instance pagination")
			return nil, ctx.Err()
		default:
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		pageNum++
		logger.Debugf(ctx, "Fetching EC2 instances page %d", pageNum)
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, awserrors.HandleAWSError(ctx, "EC2 instances", fmt.Sprintf("page %d", pageNum), err)
		}

		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				if instance.State != nil && instance.State.Name == types.InstanceStateNameTerminated {
					continue
				}
				records = append(records, MapInstance(instance))
			}
		}
	}
	return records, nil
}

func (c *Client) CreateVirtualMachine(ctx context.Context, params domain.CreateParams) (*domain.MachineRecord, error) {
	if params.Size == "" {
		return nil, apperrors.ForResource(nil, apperrors.CodeCreationError, params.Name, "an instance type (size) is required")
	}
	userData, err := cloudInitUserData(params.User, params.Password)
	if err != nil {
		return nil, apperrors.ForResource(err, apperrors.CodeCreationError, params.Name, "failed to render cloud-init user data")
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(params.Image.Version),
		InstanceType: types.InstanceType(params.Size),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []types.TagSpecification{{
			ResourceType: types.ResourceTypeInstance,
			Tags:         creationTags(params),
		}},
	}
	if userData != "" {
		input.UserData = aws.String(userData)
	}
	if params.Location != "" {
		input.Placement = &types.Placement{AvailabilityZone: aws.String(params.Location)}
	}
	if c.cfg.SubnetID != "" {
		input.SubnetId = aws.String(c.cfg.SubnetID)
	}
	if len(c.cfg.SecurityGroupIDs) > 0 {
		input.SecurityGroupIds = c.cfg.SecurityGroupIDs
	}
	if c.cfg.KeyName != "" {
		input.KeyName = aws.String(c.cfg.KeyName)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	output, err := c.ec2.RunInstances(ctx, input)
	if err != nil {
		return nil, awserrors.HandleAWSError(ctx, resourceType, params.Name, err)
	}
	if len(output.Instances) == 0 {
		return nil, nil
	}

	rec := MapInstance(output.Instances[0])
	// RunInstances does not always echo the tags back.
	if rec.Name == "" {
		rec.Name = params.Name
	}
	if rec.Image == nil {
		image := params.Image
		rec.Image = &image
	}
	if rec.AdminUsername == "" {
		rec.AdminUsername = params.User
	}
	c.logger.Debugf(ctx, "Launched %s as %s", params.Name, rec.ID)
	return &rec, nil
}

func (c *Client) DeleteVirtualMachine(ctx context.Context, handle domain.MachineRecord) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{handle.ID}})
	if err != nil {
		return awserrors.HandleAWSError(ctx, resourceType, handle.Name, err)
	}
	return nil
}

func (c *Client) StartVirtualMachine(ctx context.Context, handle domain.MachineRecord) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.ec2.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{handle.ID}})
	if err != nil {
		return awserrors.HandleAWSError(ctx, resourceType, handle.Name, err)
	}
	return nil
}

func (c *Client) StopVirtualMachine(ctx context.Context, handle domain.MachineRecord) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.ec2.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{handle.ID}})
	if err != nil {
		return awserrors.HandleAWSError(ctx, resourceType, handle.Name, err)
	}
	return nil
}
