package service

import "fmt"

// PriorityAdjustmentPolicy decides how completing an exercise moves its priority.
type PriorityAdjustmentPolicy string

const (
	// PolicyNone leaves the priority untouched.
	PolicyNone PriorityAdjustmentPolicy = "none"
	// PolicySuccessBiasesBack moves a successfully completed item one slot back.
	PolicySuccessBiasesBack PriorityAdjustmentPolicy = "success-biases-back"
	// PolicyFailureBiasesForward moves a failed item one slot forward, never below 1.
	PolicyFailureBiasesForward PriorityAdjustmentPolicy = "failure-biases-forward"
	// PolicyAdaptive applies both adjustments.
	PolicyAdaptive PriorityAdjustmentPolicy = "adaptive"
)

// ParsePriorityPolicy maps a config value to a policy. Empty means none.
func ParsePriorityPolicy(name string) (PriorityAdjustmentPolicy, error) {
	switch p := PriorityAdjustmentPolicy(name); p {
	case "":
		return PolicyNone, nil
	case PolicyNone, PolicySuccessBiasesBack, PolicyFailureBiasesForward, PolicyAdaptive:
		return p, nil
	}
	return "", fmt.Errorf("unknown priority policy %q", name)
}

// Adjust returns the priority after a completion. A nil outcome never
// changes it.
func (p PriorityAdjustmentPolicy) Adjust(priority int, success *bool) int {
	if success == nil {
		return priority
	}
	switch {
	case *success && (p == PolicySuccessBiasesBack || p == PolicyAdaptive):
		return priority + 1
	case !*success && (p == PolicyFailureBiasesForward || p == PolicyAdaptive):
		return max(priority-1, 1)
	}
	return priority
}
