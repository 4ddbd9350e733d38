package testmocks

import (
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
)

type MockEC2 struct {
	AccountID, Region string
	ec2iface.EC2API

	VPCs []*ec2.Vpc

	// When > 0, DescribeVpcsPages splits the VPCs into pages of this size
	// so pagination handling gets exercised.
	PageSize int

	DescribeVpcsError error
}

func (m *MockEC2) DescribeVpcsPages(input *ec2.DescribeVpcsInput, fn func(*ec2.DescribeVpcsOutput, bool) bool) error {
	if m.DescribeVpcsError != nil {
		return m.DescribeVpcsError
	}
	pageSize := m.PageSize
	if pageSize <= 0 {
		pageSize = len(m.VPCs)
		if pageSize == 0 {
			pageSize = 1
		}
	}
	for start := 0; ; start += pageSize {
		end := start + pageSize
		if end > len(m.VPCs) {
			end = len(m.VPCs)
		}
		lastPage := end >= len(m.VPCs)
		cont := fn(&ec2.DescribeVpcsOutput{Vpcs: m.VPCs[start:end]}, lastPage)
		if !cont || lastPage {
			return nil
		}
	}
}
