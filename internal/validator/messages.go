package validator

import (
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
)

// User-facing verdict messages.
const (
	MessageCreativeSuccess = "Great job! Your video shows someone creatively drinking milk! You're now ready to join a Milk Mob."
	MessageSuccess         = "Good job! Your video shows milk drinking. To make it even better, try adding more creative elements."
	MessageNoMilk          = "We couldn't detect milk in your video. Make sure milk is clearly visible."
	MessageNoDrinking      = "We couldn't detect drinking activity. Make sure someone is drinking milk in the video."
	MessageNotEligible     = "Your video doesn't meet all the campaign criteria. Please try again with more focus on milk drinking."
	ErrorMessage           = "Failed to validate video due to an error."

	tagClauseFound   = " Campaign hashtags detected: %s."
	tagClauseMissing = " Tip: add #GotMilk or #MilkMob to your caption to join the campaign."
)

type verdict struct {
	isValid, hasMilk, isDrinking, isCreative bool
}

// messageTable maps verdict combinations to templates; unmatched combinations
// fall through to MessageNotEligible.
var messageTable = []struct {
	match   func(v verdict) bool
	message string
}{
	{func(v verdict) bool { return v.isValid && v.isCreative }, MessageCreativeSuccess},
	{func(v verdict) bool { return v.isValid }, MessageSuccess},
	{func(v verdict) bool { return !v.hasMilk }, MessageNoMilk},
	{func(v verdict) bool { return !v.isDrinking }, MessageNoDrinking},
}

// Message renders the verdict text. The tag clause is appended only when a
// tag result is supplied.
func Message(isValid, hasMilk, isDrinking, isCreative bool, tagResult *domain.TagResult) string {
	v := verdict{isValid: isValid, hasMilk: hasMilk, isDrinking: isDrinking, isCreative: isCreative}

	msg := MessageNotEligible
	for _, row := range messageTable {
		if row.match(v) {
			msg = row.message
			break
		}
	}

	switch {
	case tagResult == nil:
	case tagResult.IsCampaignTagged:
		msg += fmt.Sprintf(tagClauseFound, strings.Join(tagResult.CampaignTagsFound, ", "))
	default:
		msg += tagClauseMissing
	}
	return msg
}
