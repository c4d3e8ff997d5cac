// Package monitor provides overseer.Monitor implementations that record
// supervision events in memory, export them as Prometheus metrics, log them
// through zap, forward failures to Sentry or write them as JSON lines.
//
// Monitors are combined by passing several of them to overseer.WithMonitor
// or by wrapping them in a Fanout.
package monitor

import "github.com/airsstack/overseer"

// Fanout forwards every event to each of its monitors in order.
type Fanout []overseer.Monitor

func (f Fanout) Record(e overseer.SupervisionEvent) {
	for _, m := range f {
		if m != nil {
			m.Record(e)
		}
	}
}
