// Package dualstore serves one entity collection from two sources: the remote
// API when it answers, the local cache when it does not.
//
// Every operation makes exactly one remote attempt bounded by a short timeout.
// A transport error, timeout or non-2xx answer is absorbed and the equivalent
// operation runs against the local cache instead; the caller receives the
// same shape of result either way. Successful remote reads and writes are
// copied into the cache so later offline reads see them. Errors raised by the
// local path itself, such as ErrNotFound, are returned to the caller.
//
// There is no retry loop and no queue of writes to replay later; the last
// store to accept a write wins.
package dualstore
