package payment

type codeInfo struct {
	outcome Outcome
	reason  string
}

var responseCodes = map[string]codeInfo{
	"00": {OutcomeCompleted, "success"},
	"07": {OutcomeCompleted, "already processed"},
	"05": {OutcomeFailed, "declined"},
	"51": {OutcomeFailed, "insufficient funds"},
	"14": {OutcomeFailed, "invalid reference"},
	"68": {OutcomeFailed, "timeout"},
	"24": {OutcomeFailed, "cancelled by customer"},
}

// Classify maps a provider response code. Unknown codes stay pending so a
// later callback can still settle the checkout.
func Classify(code string) Outcome {
	if c, ok := responseCodes[code]; ok {
		return c.outcome
	}
	return OutcomePending
}

func Reason(code string) string {
	if c, ok := responseCodes[code]; ok {
		return c.reason
	}
	return "unrecognised response code " + code
}
