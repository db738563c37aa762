// Package coordinator owns the polling cadence and the last-known-good
// payload of one weather station.
//
// A Coordinator wraps a Fetcher (normally *station.Client) and provides:
//
//   - a periodic refresh driven by a gocron scheduler, first run one interval
//     after Start
//   - on-demand refreshes that join any fetch already in flight, so at most
//     one request is outstanding per station
//   - a cached payload that only ever moves forward to another validated
//     payload; failed refreshes leave it untouched
//   - subscriber callbacks after every completed refresh, success or failure,
//     in completion order
//
// # Lifecycle
//
//	c, _ := coordinator.New(coordinator.Options{Name: "roof", Fetcher: client, Interval: time.Minute})
//	if err := c.FirstRefresh(ctx); err != nil {
//	    return err // setup aborted, nothing registered
//	}
//	unsubscribe := c.Subscribe(onRefresh)
//	_ = c.Start()
//	...
//	unsubscribe()
//	c.Stop()
//
// Stop cancels the schedule only. A fetch still running completes, but its
// result is dropped: the cache, status and subscribers are not updated.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Subscriber callbacks run on the
// goroutine that completed the fetch and must not call RequestRefresh
// synchronously.
package coordinator
