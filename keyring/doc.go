// Package keyring supplies signing secrets to the token codec and supports
// rotating them without a process restart.
//
// A [Provider] answers two questions: which key signs new tokens right now,
// and what secret verifies a token that carries a given key ID. At least two
// keys can be live at once during rotation: the previous key keeps
// validating while the new one signs.
//
// Two implementations ship with the package:
//
//   - [Static] is an in-memory key set, rotated by calling [Static.Rotate].
//   - [RedisProvider] keeps keys in Redis, shared across replicas,
//     with a short-lived in-process read cache so the hot verification path
//     does not pay a network round trip per request.
package keyring
