// Package scheduler decides when polling cycles run.
//
// The scheduler is a small state machine:
//
//	Stopped  --Start-->            Running | Blackout
//	Running  --tick in window-->   Blackout (ticker stopped, watchdog armed)
//	Blackout --watchdog, window over--> Running
//	any      --Stop / Fail-->      Stopped
//
// While Running, a ticker fires every interval. Each tick first checks the
// weekly blackout window, then launches a cycle unless the previous one is
// still in flight. In Blackout a single re-armable timer (the watchdog) wakes
// up at the end of the window, or after at most a day, to resume polling.
package scheduler
