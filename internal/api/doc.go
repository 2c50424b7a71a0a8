// Package api exposes the devnet relay over HTTP: swap submission, preflight
// checks, settlement history, balances and metrics.
package api
