package query

import "testing"

func Test_State_CanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to State
		want     bool
	}{
		{StateReceived, StateEmbedding, true},
		{StateEmbedding, StateSearching, true},
		{StateSearching, StateAnswering, true},
		{StateAnswering, StateLogged, true},
		{StateReceived, StateErrored, true},
		{StateEmbedding, StateErrored, true},
		{StateSearching, StateErrored, true},
		{StateAnswering, StateErrored, true},
		{StateErrored, StateLogged, true},

		{StateReceived, StateSearching, false}, // no stage skipping
		{StateEmbedding, StateReceived, false}, // no going back
		{StateLogged, StateEmbedding, false},   // terminal
		{StateLogged, StateErrored, false},
		{StateErrored, StateEmbedding, false}, // errored only resolves to logged
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func Test_machine_AdvancePanicsOnIllegalTransition(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on illegal transition")
		}
	}()
	m := newMachine()
	m.advance(StateAnswering) // skips embedding and searching
}
