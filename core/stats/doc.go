// Package stats holds the dashboard reducers.
//
// Every function is pure: it joins already fetched records in memory by their foreign keys
// and never retains its inputs, so callers may run them concurrently.
// Grades are compared on a 0-10 scale (value / max_value * 10).
package stats
