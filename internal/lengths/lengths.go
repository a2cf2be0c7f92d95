package lengths

import (
	"math"

	"civiclens/internal/domain"
)

// Absolute limits the summarization model tolerates.
const (
	MinAllowed = 1
	MaxAllowed = 240
)

// Short inputs cannot support long summaries: below shortInputWords the
// ceiling is tightened to a linear function of the input size, and a
// gap is kept between the bounds to give the decoder room.
const (
	shortInputWords = 80
	shortCeilFloor  = 40
	shortCeilCap    = 120
	shortGrowth     = 1.2
	boundsGap       = 10
	tightenedMaxMin = 2
)

// Resolve validates the requested summary bounds and adapts them to the
// input size. It fails with domain.CodeBadLengths when no valid pair
// can be derived.
func Resolve(minLen, maxLen, inputWords int) (domain.Bounds, error) {
	if !(MinAllowed <= minLen && minLen < maxLen && maxLen <= MaxAllowed) {
		minLen = max(MinAllowed, minLen)
		maxLen = min(MaxAllowed, maxLen)

		if minLen >= maxLen {
			return domain.Bounds{}, &domain.Error{
				Code:    domain.CodeBadLengths,
				Message: "Invalid bounds",
			}
		}
	}

	if inputWords < shortInputWords {
		newMax := int(math.Round(float64(inputWords) * shortGrowth))
		newMax = min(shortCeilCap, max(shortCeilFloor, newMax))

		maxLen = min(maxLen, newMax)
		if maxLen < tightenedMaxMin {
			maxLen = tightenedMaxMin
		}

		if maxLen-boundsGap >= MinAllowed {
			minLen = min(minLen, maxLen-boundsGap)
		} else {
			minLen = MinAllowed
		}

		if !(MinAllowed <= minLen && minLen < maxLen && maxLen <= MaxAllowed) {
			return domain.Bounds{}, &domain.Error{
				Code:    domain.CodeBadLengths,
				Message: "Chosen length is invalid for this input",
			}
		}
	}

	return domain.Bounds{MinLen: minLen, MaxLen: maxLen}, nil
}
