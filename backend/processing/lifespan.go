package processing

import (
	"regexp"
	"strconv"
)

var digitRun = regexp.MustCompile(`[0-9]+`)

// MaxLifeSpanYears extracts the upper bound of a life span such as "10 - 12 years".
//
// Digit runs are collected left to right. With two or more, the second one wins; with one,
// that one; with none, ok is false. A run too large for int64 also yields ok false.
// Strings with more than two numbers ("12-15 years (since 1990)") still return the second.
func MaxLifeSpanYears(lifeSpan string) (years int64, ok bool) {
	nums := digitRun.FindAllString(lifeSpan, 2)
	var pick string
	switch len(nums) {
	case 0:
		return 0, false
	case 1:
		pick = nums[0]
	default:
		pick = nums[1]
	}
	n, err := strconv.ParseInt(pick, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// AmbiguousLifeSpan reports whether the string holds more than two numbers,
// where MaxLifeSpanYears may not return the upper bound.
func AmbiguousLifeSpan(lifeSpan string) bool {
	return len(digitRun.FindAllString(lifeSpan, 3)) > 2
}
