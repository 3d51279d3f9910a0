package input

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestButtons_Poll(t *testing.T) {
	b := NewButtons(DefaultDebounce)

	_, ok := b.Poll()
	assert.False(t, ok)

	b.Edge(TimeInPressed).Trigger()
	event, ok := b.Poll()
	require.True(t, ok)
	assert.Equal(t, TimeInPressed, event)

	// the edge was consumed
	_, ok = b.Poll()
	assert.False(t, ok)
}

func TestButtons_Debounce(t *testing.T) {
	b := NewButtons(time.Hour)

	b.Edge(HomePressed).Trigger()
	_, ok := b.Poll()
	require.True(t, ok)

	// bounce: a second edge right after the accepted one is dropped
	b.Edge(HomePressed).Trigger()
	_, ok = b.Poll()
	assert.False(t, ok)

	// debouncing is per source: another button is unaffected
	b.Edge(EnrollPressed).Trigger()
	event, ok := b.Poll()
	require.True(t, ok)
	assert.Equal(t, EnrollPressed, event)
}

func TestButtons_DebounceExpires(t *testing.T) {
	b := NewButtons(time.Millisecond)

	b.Edge(HomePressed).Trigger()
	_, ok := b.Poll()
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	b.Edge(HomePressed).Trigger()
	event, ok := b.Poll()
	require.True(t, ok)
	assert.Equal(t, HomePressed, event)
}

func TestReader_ReadID(t *testing.T) {
	testCases := []struct {
		name    string
		keys    string
		want    int
		wantErr error
	}{
		{name: "simple", keys: "42#", want: 42},
		{name: "max digits", keys: "1000#", want: 1000},
		{name: "backspace", keys: "49*2#", want: 42},
		{name: "extra digits ignored", keys: "10005#", want: 1000},
		{name: "empty entry", keys: "#", wantErr: ErrNoInput},
		{name: "backspace to empty", keys: "4**#", wantErr: ErrNoInput},
		{name: "zero", keys: "0#", wantErr: ErrOutOfRange},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			q.Push([]byte(tt.keys)...)
			r := NewReader(q, 1000, time.Millisecond)

			var echoed []string
			r.Echo = func(digits string) { echoed = append(echoed, digits) }

			id, err := r.ReadID(context.Background(), nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
			assert.NotEmpty(t, echoed)
		})
	}
}

func TestReader_ReadID_Cancelled(t *testing.T) {
	q := NewQueue()
	q.Push('4', '2')
	r := NewReader(q, 1000, time.Millisecond)

	var polls int
	cancelled := func() bool {
		polls++
		return polls > 5
	}

	_, err := r.ReadID(context.Background(), cancelled)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestReader_ReadID_ContextDone(t *testing.T) {
	r := NewReader(NewQueue(), 1000, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.ReadID(ctx, nil)
	assert.ErrorIs(t, err, ErrCancelled)
}
