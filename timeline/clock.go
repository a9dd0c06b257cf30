package timeline

import "time"

const defaultTickInterval = 100 * time.Millisecond

// ClockFactory builds the timeline's clock event the first time Clock (or
// TimeBehavior) is accessed. It receives the timeline and its paused state
// and is responsible for starting whatever background production the clock
// needs (typically a ticking goroutine on the timeline's Scope) and
// returning the event ticks are broadcast on.
type ClockFactory func(t *Timeline, paused *MutableState[bool]) Event[time.Duration]

// NewTickerClockFactory returns a ClockFactory that broadcasts the elapsed
// wall-clock interval on every tick of a time.Ticker, skipping ticks while
// paused is true.
func NewTickerClockFactory(interval time.Duration) ClockFactory {
	return func(t *Timeline, paused *MutableState[bool]) Event[time.Duration] {
		clock := InternalBroadcastEventOf[time.Duration](t, "clock")
		t.scope.Go(func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-t.scope.Done():
					return
				case <-ticker.C:
					if paused.Value() {
						continue
					}
					_ = clock.Send(interval)
				}
			}
		})
		return clock.Event
	}
}

// Paused returns the timeline's mutable pause flag, creating it on first
// access. Setting it to true suppresses future clock ticks without
// stopping the underlying background goroutine.
func (t *Timeline) Paused() *MutableState[bool] {
	t.clockOnce.Do(t.initClock)
	return t.pausedState
}

// Clock returns the timeline's clock event — the elapsed interval since the
// previous tick — starting its background producer on first access via the
// configured ClockFactory.
func (t *Timeline) Clock() Event[time.Duration] {
	t.clockOnce.Do(t.initClock)
	return *t.clockEvent
}

// TimeBehavior returns a Behavior sampling the total elapsed duration since
// the clock was first accessed: the fold of Clock into an accumulated sum.
func (t *Timeline) TimeBehavior() Behavior[time.Duration] {
	t.clockOnce.Do(t.initClock)
	return *t.timeBehavior
}

func (t *Timeline) initClock() {
	paused := MutableStateOf(t, false, "clock-paused")
	t.pausedState = &paused
	clock := t.clockFactory(t, t.pausedState)
	t.clockEvent = &clock
	elapsed := FoldState(t, time.Duration(0), clock, func(acc, tick time.Duration) time.Duration {
		return acc + tick
	}, "elapsed-time")
	t.timeBehavior = &elapsed
}
