package agent

// OutcomeKind tags an Outcome.
type OutcomeKind string

const (
	OutcomeAnswered                OutcomeKind = "answered"
	OutcomeAnsweredFromObservation OutcomeKind = "answered_from_observation"
	OutcomeExhausted               OutcomeKind = "exhausted"
	OutcomeFailed                  OutcomeKind = "failed"
)

// NoAnswerReason is the Failed reason when the loop produced nothing.
const NoAnswerReason = "no answer produced"

// Outcome is what a resolution produced. Text is set for the two answered
// kinds; Reason for Failed.
type Outcome struct {
	Kind   OutcomeKind
	Text   string
	Reason string
}

// Answered is an answer written by the generator.
func Answered(text string) Outcome { return Outcome{Kind: OutcomeAnswered, Text: text} }

// AnsweredFromObservation is an answer taken from raw tool output.
func AnsweredFromObservation(text string) Outcome {
	return Outcome{Kind: OutcomeAnsweredFromObservation, Text: text}
}

// Exhausted means the budget ran out with nothing to return.
func Exhausted() Outcome { return Outcome{Kind: OutcomeExhausted} }

// Failed means no answer could be produced.
func Failed(reason string) Outcome { return Outcome{Kind: OutcomeFailed, Reason: reason} }

// IsAnswer reports whether the outcome carries answer text.
func (o Outcome) IsAnswer() bool {
	return o.Kind == OutcomeAnswered || o.Kind == OutcomeAnsweredFromObservation
}

// Extract applies the fallback policy to a finished run. The guards are
// checked in order and the first match wins:
//
//  1. generator text and no tool observation: Answered(text)
//  2. any tool observation, even alongside text: AnsweredFromObservation
//     with the most recent observation
//  3. nothing, and the budget ran out: Exhausted
//  4. nothing: Failed
func Extract(r *Result) Outcome {
	if r == nil {
		return Failed(NoAnswerReason)
	}
	observation, observed := r.LastObservation()

	switch {
	case r.FinalText != "" && !observed:
		return Answered(r.FinalText)
	case observed:
		return AnsweredFromObservation(observation)
	case r.Exhausted:
		return Exhausted()
	default:
		return Failed(NoAnswerReason)
	}
}
