// Package stream implements the continuous-capture data source: the
// lifecycle state machine, the fixed-interval segment scheduler, and the
// event dispatcher that delivers encoded segments to a registered observer.
package stream
