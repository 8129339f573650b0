// Package agent implements the intent-routing graph: classify the user turn,
// route it to the handler for that intent, and run the handler's
// tool-invocation loop until the oracle produces a final answer.
package agent

// Intent is the routing label assigned to one user turn
type Intent string

const (
	IntentWeather Intent = "weather"
	IntentMath    Intent = "math"
	IntentChat    Intent = "chat"
)

// DefaultIntent is used whenever the classifier output is not recognised
const DefaultIntent = IntentChat

// Intents lists the closed set of labels, in routing order
var Intents = []Intent{IntentWeather, IntentMath, IntentChat}

func (i Intent) Valid() bool {
	switch i {
	case IntentWeather, IntentMath, IntentChat:
		return true
	}
	return false
}

func (i Intent) String() string { return string(i) }

// ParseIntent returns the label for s when s is exactly one of the known labels
func ParseIntent(s string) (Intent, bool) {
	i := Intent(s)
	return i, i.Valid()
}
