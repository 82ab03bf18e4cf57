package overlay

import "expvar"

// Process-wide counters: a flat package-level var block of expvar.Int,
// incremented inline at the call site rather than threaded through as a
// dependency.
var (
	totalHandshakesSent        = expvar.NewInt("overlayHandshakesSent")
	totalHandshakesAccepted    = expvar.NewInt("overlayHandshakesAccepted")
	totalSimultaneousResolved  = expvar.NewInt("overlaySimultaneousHandshakesResolved")
	totalSessionsEstablished   = expvar.NewInt("overlaySessionsEstablished")
	totalPingRoundTrips        = expvar.NewInt("overlayPingRoundTrips")
	totalRequestPingsDropped   = expvar.NewInt("overlayRequestPingsRateLimited")
	totalAcceptWantPingDropped = expvar.NewInt("overlayAcceptWantPingRateLimited")
	totalRouteCoordsSolved     = expvar.NewInt("overlayRouteCoordsSolved")
	totalSolverFailures        = expvar.NewInt("overlaySolverFailures")
	totalActionErrors          = expvar.NewInt("overlayActionErrors")
)
