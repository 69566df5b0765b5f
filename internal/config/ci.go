package config

import "github.com/gkampitakis/ciinfo"

// ColorEnabled returns whether check output should be styled.
// "always" → true, "never" → false, "auto" → enabled on a terminal when not
// running in CI.
func ColorEnabled(mode string, isTerminal bool) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default: // "auto"
		return isTerminal && !ciinfo.IsCI
	}
}
