// Package licsync polls an external accounting database over HTTP and
// reconciles its license records into a license.Pool (spec.md §4.4
// "Remote-sync"). No wire format is specified for the remote accounting DB,
// so the poller speaks plain JSON rather than inventing a protobuf
// contract. Modeled on the teacher's pkg/reconciler ticker-loop shape:
// Start/Stop around a goroutine selecting on a ticker and a stop channel.
package licsync
