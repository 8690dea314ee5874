package domain

// Delivery is the broker's view of the task attempt currently in flight.
// Attempt starts at 1; the counter lives on the queue message, never on the
// document entity.
type Delivery struct {
	Attempt     int
	MaxAttempts int
}

// Final reports whether the retry policy allows no further redelivery.
func (d Delivery) Final() bool {
	return d.MaxAttempts > 0 && d.Attempt >= d.MaxAttempts
}

// CycleOutcome summarizes one processing cycle for instrumentation. A
// redelivered cycle ended with the task going back to the queue and is not
// terminal for the document.
type CycleOutcome string

const (
	CycleCompleted   CycleOutcome = "completed"
	CycleFailed      CycleOutcome = "failed"
	CycleRedelivered CycleOutcome = "redelivered"
	CycleSkipped     CycleOutcome = "skipped"
)
