/*
Package resilience isolates failing remote origins behind circuit breakers.

A Breaker moves through three states:

	Closed --[trip]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                         |
	                                     [failure]
	                                         v
	                                       Open

A Group keeps one Breaker per key (the asset fetcher keys by URL origin),
so one dead image host never blocks images from another.

	group := resilience.NewGroup("assets", resilience.Settings{
		ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 5 },
	})
	err := group.Get("https://cdn.example.com").Execute(func() error {
		return fetch()
	})
*/
package resilience
