package query

// State is a stage in the per-query lifecycle. Every query moves
// Received → Embedding → Searching → Answering → Logged; a failure in any
// non-terminal stage moves to Errored, which still transitions to Logged so
// the failure is recorded rather than swallowed.
type State string

const (
	// StateReceived means the query has arrived and a pending log record exists.
	StateReceived State = "received"
	// StateEmbedding means the query text is being embedded.
	StateEmbedding State = "embedding"
	// StateSearching means the vector index is being queried.
	StateSearching State = "searching"
	// StateAnswering means the answer is being generated from retrieved context.
	StateAnswering State = "answering"
	// StateErrored means a stage failed; the error is recorded before Logged.
	StateErrored State = "errored"
	// StateLogged is terminal: the log record has been updated with the outcome.
	StateLogged State = "logged"
)

// transitions enumerates the legal successor states.
var transitions = map[State][]State{
	StateReceived:  {StateEmbedding, StateErrored},
	StateEmbedding: {StateSearching, StateErrored},
	StateSearching: {StateAnswering, StateErrored},
	StateAnswering: {StateLogged, StateErrored},
	StateErrored:   {StateLogged},
	StateLogged:    nil,
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// machine tracks the current state of one query. The orchestrator drives it
// through the stages; advance panics on an illegal transition because that is
// a programming error in the orchestrator, never an input condition.
type machine struct {
	current State
}

func newMachine() *machine {
	return &machine{current: StateReceived}
}

func (m *machine) advance(next State) {
	if !m.current.CanTransition(next) {
		panic("query: illegal transition " + string(m.current) + " -> " + string(next))
	}
	m.current = next
}
