package awsvpc

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"

	"github.com/netopsio/infoblox-sync/sync"
)

// ListVPCs fetches VPCs live from EC2 instead of a CSV export. A VPC with
// multiple CIDR block associations expands into one record per associated
// block, all sharing the VPC ID as source.
func ListVPCs(svc ec2iface.EC2API, accountID, region string, logger Logger) ([]*sync.NetworkRecord, error) {
	records := []*sync.NetworkRecord{}
	err := svc.DescribeVpcsPages(&ec2.DescribeVpcsInput{}, func(page *ec2.DescribeVpcsOutput, lastPage bool) bool {
		for _, vpc := range page.Vpcs {
			records = append(records, vpcToRecords(vpc, accountID, region)...)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("Error describing VPCs: %s", err)
	}
	logger.Log("Fetched %d network records from EC2", len(records))
	return records, nil
}

func vpcToRecords(vpc *ec2.Vpc, accountID, region string) []*sync.NetworkRecord {
	tags := []sync.Tag{}
	name := "Unnamed VPC"
	for _, tag := range vpc.Tags {
		tags = append(tags, sync.Tag{Key: aws.StringValue(tag.Key), Value: aws.StringValue(tag.Value)})
		if aws.StringValue(tag.Key) == "Name" {
			name = aws.StringValue(tag.Value)
		}
	}
	vpcID := aws.StringValue(vpc.VpcId)
	if accountID != "" {
		tags = append(tags, sync.Tag{Key: "AccountId", Value: accountID})
	}
	if region != "" {
		tags = append(tags, sync.Tag{Key: "Region", Value: region})
	}
	tags = append(tags, sync.Tag{Key: "VpcId", Value: vpcID})

	cidrs := []string{}
	for _, assoc := range vpc.CidrBlockAssociationSet {
		state := ""
		if assoc.CidrBlockState != nil {
			state = aws.StringValue(assoc.CidrBlockState.State)
		}
		if state == ec2.VpcCidrBlockStateCodeAssociated || state == "" {
			cidrs = append(cidrs, aws.StringValue(assoc.CidrBlock))
		}
	}
	if len(cidrs) == 0 {
		cidrs = append(cidrs, aws.StringValue(vpc.CidrBlock))
	}

	records := []*sync.NetworkRecord{}
	for _, cidr := range cidrs {
		records = append(records, &sync.NetworkRecord{
			CIDR:     cidr,
			SourceID: vpcID,
			Name:     name,
			Comment:  fmt.Sprintf("AWS VPC: %s (VPC ID: %s)", name, vpcID),
			RawTags:  tags,
			EAs:      sync.MapTagsToEAs(tags),
		})
	}
	return records
}
