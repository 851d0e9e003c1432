package util

import "strings"

// Sep separates the namespace from the logical key.
const Sep = ":"

// Join returns the storage key for a logical key: "<ns>:<key>".
// It is the only key transformation in the module.
func Join(ns, key string) string {
	return ns + Sep + key
}

// Prefix returns the storage prefix shared by every key of ns.
func Prefix(ns string) string { return ns + Sep }

// SplitLast splits a storage key at its last separator. A key without a
// separator is returned whole as head with an empty tail.
func SplitLast(storageKey string) (head, tail string) {
	i := strings.LastIndex(storageKey, Sep)
	if i < 0 {
		return storageKey, ""
	}
	return storageKey[:i], storageKey[i+1:]
}

// EscapeGlob escapes Redis glob metacharacters so s matches literally in
// SCAN MATCH patterns.
func EscapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\^`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\', '^':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
