package boltstore

// Bucket names for the world collection.
var (
	bucketObjects = []byte("objects")
	bucketMeta    = []byte("meta")
	idxLocation   = []byte("idx_location")
	idxOwner      = []byte("idx_owner")
)

// Bucket names for the accounts collection.
var (
	bucketAccounts = []byte("accounts")
	idxLogin       = []byte("idx_login")
	idxRole        = []byte("idx_role")
)

// compositeKey builds "key\x00member" entries for multi-valued indexes.
func compositeKey(key, member string) []byte {
	out := make([]byte, 0, len(key)+1+len(member))
	out = append(out, key...)
	out = append(out, 0)
	out = append(out, member...)
	return out
}

// splitComposite returns the member part of a composite key, or "" if the
// key does not match the prefix.
func splitComposite(k []byte, key string) string {
	if len(k) <= len(key)+1 {
		return ""
	}
	if string(k[:len(key)]) != key || k[len(key)] != 0 {
		return ""
	}
	return string(k[len(key)+1:])
}
