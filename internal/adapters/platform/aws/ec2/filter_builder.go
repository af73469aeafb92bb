package ec2

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const (
	awsTagFilterPrefix = "tag:"
	stateFilterName    = "instance-state-name"
)

// Generic filter keys accepted from configuration.
const (
	FilterKeyName       = "name"
	FilterKeyLocation   = "location"
	FilterKeySize       = "size"
	FilterKeyImageID    = "image-id"
	FilterKeySubnetID   = "subnet-id"
	FilterKeyInstanceID = "instance-id"
	FilterKeyTagPrefix  = "tag:"
)

var ec2FilterNameMap = map[string]string{
	FilterKeyName:       awsTagFilterPrefix + TagName,
	FilterKeyLocation:   "availability-zone",
	FilterKeySize:       "instance-type",
	FilterKeyImageID:    "image-id",
	FilterKeySubnetID:   "subnet-id",
	FilterKeyInstanceID: "instance-id",
}

var multiValueFilters = map[string]struct{}{
	"instance-id":       {},
	"image-id":          {},
	"subnet-id":         {},
	"availability-zone": {},
	"instance-type":     {},
}

// liveStates excludes terminated instances, which keep their tags for a
// while after deletion.
var liveStates = []string{"pending", "running", "shutting-down", "stopping", "stopped"}

// BuildEC2Filters turns generic key/value filters into DescribeInstances
// filters. Unknown keys are ignored. Terminated instances are excluded unless
// a state filter is given explicitly.
func BuildEC2Filters(genericFilters map[string]string) []types.Filter {
	ec2Filters := make([]types.Filter, 0, len(genericFilters)+1)
	stateProvided := false

	for key, value := range genericFilters {
		filterName := ""
		filterValues := []string{value}

		if strings.HasPrefix(key, FilterKeyTagPrefix) {
			filterName = awsTagFilterPrefix + strings.TrimPrefix(key, FilterKeyTagPrefix)
		} else if mappedName, ok := ec2FilterNameMap[key]; ok {
			filterName = mappedName
			if _, supportsMulti := multiValueFilters[filterName]; supportsMulti {
				filterValues = SplitFilterValue(value)
			}
		} else if key == stateFilterName {
			filterName = key
			filterValues = SplitFilterValue(value)
			stateProvided = true
		} else {
			continue
		}

		name := filterName
		ec2Filters = append(ec2Filters, types.Filter{
			Name:   &name,
			Values: filterValues,
		})
	}

	if !stateProvided {
		name := stateFilterName
		ec2Filters = append(ec2Filters, types.Filter{
			Name:   &name,
			Values: append([]string(nil), liveStates...),
		})
	}

	return ec2Filters
}

// NameFilters selects the live instances carrying the given Name tag.
func NameFilters(name string) []types.Filter {
	return BuildEC2Filters(map[string]string{FilterKeyName: name})
}

func SplitFilterValue(value string) []string {
	if !strings.Contains(value, ",") {
		return []string{value}
	}
	parts := strings.Split(value, ",")
	trimmedParts := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			trimmedParts = append(trimmedParts, trimmed)
		}
	}
	if len(trimmedParts) == 0 {
		return []string{}
	}
	return trimmedParts
}
