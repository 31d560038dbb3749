package store

// Store holds MginDB values under colon separated paths such as
// "users:1:name". A path's subtree is every key that starts with "path:".
type Store interface {
	Get(key string) (string, bool)
	Set(key string, value string)
	Update(key string, fn func(old string, ok bool) (string, error)) (string, error)
	Del(key string) int
	Rename(path, newKey string) int
	Keys(prefix string) []string
	Subtree(key string) map[string]string
	Flush()
}
