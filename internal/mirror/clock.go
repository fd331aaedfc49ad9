package mirror

import "time"

// frameClock paces the loop. After each tick it suspends for whatever
// remains of the interval, then advances the boundary to "now" rather than
// to boundary+interval: a slow tick is never made up by rendering faster,
// and scheduling jitter cannot accumulate negative sleep debt.
type frameClock struct {
	interval time.Duration
	last     time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

func (c *frameClock) start() {
	c.last = c.now()
}

func (c *frameClock) pace() {
	if elapsed := c.now().Sub(c.last); elapsed < c.interval {
		c.sleep(c.interval - elapsed)
	}
	c.last = c.now()
}
