package dialogue

import "regexp"

// Intent is the classified kind of a conversational interruption.
type Intent string

const (
	IntentPause       Intent = "pause"
	IntentCorrection  Intent = "correction"
	IntentTopicChange Intent = "topic_change"
	IntentCancel      Intent = "cancel"
	IntentQuestion    Intent = "question"
	IntentNone        Intent = "none"
)

// Recommendation is the suggested handling for a classified interruption.
type Recommendation string

const (
	RecommendAbort          Recommendation = "abort"
	RecommendRecoverContext Recommendation = "recover_with_context"
	RecommendAnswerResume   Recommendation = "answer_and_resume"
	RecommendPauseResume    Recommendation = "pause_and_resume"
	RecommendContinue       Recommendation = "continue"
)

// intentRule pairs a compiled pattern with the intent it detects.
type intentRule struct {
	intent  Intent
	pattern *regexp.Regexp
}

// intentRules is the ordered rule table. First match wins, so the order is
// part of the contract: hesitation outranks correction outranks digression
// outranks abandonment outranks plain questions.
var intentRules = []intentRule{
	{IntentPause, regexp.MustCompile(`(?i)\b(wait|hold on|hang on|one (moment|minute|sec(ond)?)|give me a (moment|minute|sec(ond)?)|pause|not (right )?now|let me think)\b`)},
	{IntentCorrection, regexp.MustCompile(`(?i)\b(actually|i meant|i mean|that'?s (wrong|not right|incorrect)|no,? (that|it|i)|correction|change that|scratch that|go back)\b`)},
	{IntentTopicChange, regexp.MustCompile(`(?i)\b(by the way|btw|speaking of|before i forget|unrelated|off.?topic|different (topic|question|thing)|something else)\b`)},
	{IntentCancel, regexp.MustCompile(`(?i)\b(cancel|never\s?mind|forget (it|this)|abort|stop (this|everything)|quit|give up|don'?t bother|i'?m done)\b`)},
	{IntentQuestion, regexp.MustCompile(`(?i)(^\s*(what|why|how|when|where|who|which|can|could|would|should|do|does|did|is|are|will)\b|\?\s*$)`)},
}

// Classification is the outcome of running an utterance through the rule table.
type Classification struct {
	IsInterruption bool           `json:"is_interruption"`
	Intent         Intent         `json:"intent"`
	Recommendation Recommendation `json:"recommendation"`
}

// ClassifyUtterance applies the ordered rule table to a user utterance.
// It is pure: no session state is consulted or mutated.
func ClassifyUtterance(message string) Classification {
	for _, rule := range intentRules {
		if rule.pattern.MatchString(message) {
			return Classification{
				IsInterruption: true,
				Intent:         rule.intent,
				Recommendation: recommendFor(rule.intent),
			}
		}
	}
	return Classification{IsInterruption: false, Intent: IntentNone, Recommendation: RecommendContinue}
}

func recommendFor(intent Intent) Recommendation {
	switch intent {
	case IntentCancel:
		return RecommendAbort
	case IntentTopicChange:
		return RecommendRecoverContext
	case IntentQuestion:
		return RecommendAnswerResume
	default:
		return RecommendPauseResume
	}
}
