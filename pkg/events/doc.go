/*
Package events is an in-memory pub/sub broker for live cluster
notifications: cluster/node/action status transitions broadcast to any
subscriber (CLI watch, metrics, audit log) without those subscribers
blocking the publisher.

Publish is non-blocking and delivery is best-effort: a subscriber whose
50-event buffer is full silently misses the event rather than stalling the
broadcast loop. This package is not the durable record — pkg/storage's
AppendEvent/ListEvents is, and pkg/engine writes to both.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	go func() {
		for e := range sub {
			fmt.Println(e.Type, e.Subject)
		}
	}()
*/
package events
