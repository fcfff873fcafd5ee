package strategy

// Observe evaluates signals but never trades.
type Observe struct{}

// Name implements Strategy.
func (Observe) Name() string { return NameObserve }

// Evaluate implements Strategy.
func (Observe) Evaluate(in Inputs) Action {
	switch {
	case in.SignalErr != nil:
		return hold(StateInsufficientData)
	case in.Signal.Active():
		return hold(StateObserved)
	default:
		return hold(StateNoSignal)
	}
}
