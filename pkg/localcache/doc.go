// Package localcache is the on-device fallback copy of the canteen collections.
// Each collection lives under one key of a Store as a JSON array and is
// rewritten in full on every mutation. Store backends are provided by the
// mock (in-memory), boltstore and sqlitestore subpackages; Collection adds
// typed access on top of any of them.
package localcache
