package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JFDuval/flexsea-v2/pkg/bus/gpio"
)

func requireExclusive(t *testing.T, f *Fake, active int) {
	tx, rx := f.Lines()
	for ch := range tx {
		require.Equalf(t, ch == active, tx[ch], "tx of channel %d", ch)
		require.Equalf(t, ch == active, rx[ch], "rx of channel %d", ch)
	}
}

func TestArbiterExclusive(t *testing.T) {
	f := NewFake(4)
	a := NewArbiter(f)
	require.Equal(t, -1, a.Active())
	for _, ch := range []int{0, 3, 1, 1, 2, 0} {
		require.NoError(t, a.UseChannel(ch))
		require.Equal(t, ch, a.Active())
		requireExclusive(t, f, ch)
	}
}

func TestArbiterDisableBeforeEnable(t *testing.T) {
	f := NewFake(2)
	a := NewArbiter(f)
	require.NoError(t, a.UseChannel(1))
	f.History = nil
	require.NoError(t, a.UseChannel(0))
	require.Len(t, f.History, 6)
	for _, w := range f.History[:4] {
		require.False(t, w.Enabled)
	}
	for _, w := range f.History[4:] {
		require.True(t, w.Enabled)
		require.Equal(t, 0, w.Channel)
	}
}

func TestArbiterInvalidChannel(t *testing.T) {
	f := NewFake(2)
	a := NewArbiter(f)
	require.NoError(t, a.UseChannel(0))
	for _, ch := range []int{-1, 2} {
		err := a.UseChannel(ch)
		require.True(t, errors.Is(err, ErrInvalidChannel))
	}
	require.Equal(t, 0, a.Active())
	requireExclusive(t, f, 0)
}

func TestArbiterWriteFailure(t *testing.T) {
	f := NewFake(2)
	a := NewArbiter(f)
	f.Err = errors.New("line busy")
	require.Error(t, a.UseChannel(1))
	require.Equal(t, -1, a.Active())
	f.Err = nil
	require.NoError(t, a.UseChannel(1))
	requireExclusive(t, f, 1)
}

type batchFake struct {
	*Fake
	writes int
}

func (b *batchFake) SetLines(tx, rx []bool) error {
	b.writes++
	copy(b.TX, tx)
	copy(b.RX, rx)
	return nil
}

func TestArbiterBatch(t *testing.T) {
	b := &batchFake{Fake: NewFake(3)}
	a := NewArbiter(b)
	require.NoError(t, a.UseChannel(2))
	require.NoError(t, a.UseChannel(0))
	require.Equal(t, 2, b.writes)
	require.Empty(t, b.History)
	requireExclusive(t, b.Fake, 0)
	require.NoError(t, a.Close())
	requireExclusive(t, b.Fake, -1)
}

func TestArbiterSelector(t *testing.T) {
	f := NewFake(2)
	a := NewArbiter(f)
	require.NoError(t, a.Selector(1).Select())
	requireExclusive(t, f, 1)
	require.NoError(t, a.Selector(0).Select())
	requireExclusive(t, f, 0)
	require.Error(t, a.Selector(5).Select())
}

func TestArbiterRelease(t *testing.T) {
	f := NewFake(2)
	a := NewArbiter(f)
	require.NoError(t, a.UseChannel(1))
	require.NoError(t, a.Release())
	require.Equal(t, -1, a.Active())
	requireExclusive(t, f, -1)
}

func TestOpenDegrades(t *testing.T) {
	a := Open(gpio.Config{})
	require.Equal(t, 1, a.Channels())
	require.NoError(t, a.UseChannel(0))

	a = Open(gpio.Config{Chip: "/nonexistent/gpiochip", Pairs: []gpio.Pair{{TX: 1, RX: 2}, {TX: 3, RX: 4}}})
	require.Equal(t, 1, a.Channels())
	require.NoError(t, a.UseChannel(0))
	require.True(t, errors.Is(a.UseChannel(1), ErrInvalidChannel))
	require.NoError(t, a.Close())
}

func TestOpenLinesUnavailable(t *testing.T) {
	a, err := OpenLines(gpio.Config{Chip: "/nonexistent/gpiochip", Pairs: []gpio.Pair{{TX: 1, RX: 2}}})
	require.Nil(t, a)
	require.True(t, errors.Is(err, ErrUnavailable))

	_, err = OpenLines(gpio.Config{Chip: "/nonexistent/gpiochip", Pairs: []gpio.Pair{{TX: 1, RX: 1}}})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrUnavailable))
}
