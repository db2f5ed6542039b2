package enums

import "fmt"

// DistributionType captures the cadence or reason of an outbound shipment.
type DistributionType string

const (
	DistributionWeekly    DistributionType = "weekly"
	DistributionBiWeekly  DistributionType = "bi_weekly"
	DistributionMonthly   DistributionType = "monthly"
	DistributionBiMonthly DistributionType = "bi_monthly"
	DistributionCrisisAid DistributionType = "crisis_aid"
	DistributionOther     DistributionType = "other"
)

var validDistributionTypes = []DistributionType{
	DistributionWeekly,
	DistributionBiWeekly,
	DistributionMonthly,
	DistributionBiMonthly,
	DistributionCrisisAid,
	DistributionOther,
}

func (d DistributionType) String() string {
	return string(d)
}

func (d DistributionType) IsValid() bool {
	for _, candidate := range validDistributionTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDistributionType converts raw input into a DistributionType.
func ParseDistributionType(value string) (DistributionType, error) {
	for _, candidate := range validDistributionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid distribution type %q", value)
}
