package watch

import (
	"strings"
	"time"
)

// Pulse flips on every successful heartbeat. It stops flipping when the
// controller stops beating.
type Pulse struct {
	frames   []string
	index    int
	lastBeat time.Time
}

func NewPulse() Pulse {
	return Pulse{frames: []string{"♡", "♥"}}
}

func (p *Pulse) Beat(at time.Time) {
	p.index = (p.index + 1) % len(p.frames)
	p.lastBeat = at
}

func (p Pulse) Current() string {
	return p.frames[p.index]
}

func (p Pulse) LastBeat() time.Time {
	return p.lastBeat
}

// Spinner shows event activity with a decaying dot pattern.
// Lights up on events, fades over time.
type Spinner struct {
	dots      int
	lastEvent time.Time
}

func NewSpinner() Spinner {
	return Spinner{}
}

func (s *Spinner) OnEvent(at time.Time) {
	s.dots = 5
	s.lastEvent = at
}

// Decay fades the spinner dots based on time since last event.
func (s *Spinner) Decay(now time.Time) {
	if s.dots == 0 {
		return
	}
	elapsed := now.Sub(s.lastEvent)
	switch {
	case elapsed > 10*time.Second:
		s.dots = 0
	case elapsed > 8*time.Second:
		s.dots = 1
	case elapsed > 6*time.Second:
		s.dots = 2
	case elapsed > 4*time.Second:
		s.dots = 3
	case elapsed > 2*time.Second:
		s.dots = 4
	}
}

func (s Spinner) Render(theme Theme) string {
	var result strings.Builder
	for i := range 5 {
		if i < s.dots {
			result.WriteString(theme.TickerActive.Render("●"))
		} else {
			result.WriteString(theme.TickerInactive.Render("○"))
		}
	}
	return result.String()
}

func (s Spinner) LastEvent() time.Time {
	return s.lastEvent
}
