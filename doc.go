// Package stratcache is a pluggable object-cache strategy layer. The
// process picks, at startup or at runtime, which physical backend serves
// every cache read and write; callers stay backend-agnostic.
//
// Strategies:
//   - InMemory: in-process, sharded bigcache store. Always registered and
//     active until something else is activated.
//   - KeyValueStore: one Redis string per entry, native Redis expiry.
//   - HashStore: entries are fields of Redis hashes, expiry carried in the
//     value frame.
//   - Memcached: memcached items; a namespace is cleared by retiring its
//     generation.
//
// Other backends register a Factory under their own Identifier.
//
// Keys:
//
//	<namespace>:<key>
//
// The namespace defaults to DefaultNamespace and is sealed on the first
// activation or cache operation, so two consumers sharing a backend never
// see each other's entries.
//
// Typical wiring:
//
//	settings := config.Load()
//	id, err := stratcache.Bootstrap(settings) // KeyValueStore, HashStore, Memcached, else InMemory
//	...
//	users, _ := stratcache.NewObject(stratcache.ObjectOptions[User]{Codec: codec.JSON[User]{}})
//	_ = users.Set(ctx, "user:42", u)
package stratcache
