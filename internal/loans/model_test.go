package loans

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"michibiblio-backend/internal/platform/apperr"
)

func TestReturn(t *testing.T) {
	tests := []struct {
		name  string
		from  State
		today int
		want  State
	}{
		{"before due", StateLent, 10, StateReturned},
		{"on due date", StateLent, 15, StateReturned},
		{"after due", StateLent, 16, StateLate},
		{"late returned on time", StateLate, 14, StateReturned},
		{"late returned late again", StateLate, 20, StateLate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLent()
			l.State = tt.from
			today := day(time.March, tt.today)

			require.NoError(t, l.Return(today))
			assert.Equal(t, tt.want, l.State)
			require.True(t, l.ActualReturnDate.Valid)
			assert.Equal(t, today, l.ActualReturnDate.Date)
		})
	}
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	for _, st := range []State{StateReturned, StateStolen} {
		l := newLent()
		l.State = st
		err := l.Return(day(time.March, 2))
		assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err), st)

		err = l.MarkStolen(day(time.March, 2))
		assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err), st)
		assert.Equal(t, st, l.State)
	}
}

func TestMarkStolen(t *testing.T) {
	l := newLent()
	today := day(time.April, 1)
	require.NoError(t, l.MarkStolen(today))
	assert.Equal(t, StateStolen, l.State)
	assert.Equal(t, today, l.ActualReturnDate.Date)
	assert.False(t, l.State.Active())
}

func TestIsOverdue(t *testing.T) {
	est := day(time.March, 15)
	assert.False(t, IsOverdue(StateLent, est, day(time.March, 15)))
	assert.True(t, IsOverdue(StateLent, est, day(time.March, 16)))
	assert.True(t, IsOverdue(StateLate, est, day(time.March, 1)))
	assert.False(t, IsOverdue(StateReturned, est, day(time.April, 1)))
	assert.False(t, IsOverdue(StateStolen, est, day(time.April, 1)))
}
