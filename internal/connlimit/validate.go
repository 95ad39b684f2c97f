package connlimit

// ValidName reports whether name is safe to use as a limit file name.
// Only non-empty ASCII-alphanumeric names qualify; anything else (path
// separators, dots, whitespace, non-ASCII) could be used for directory
// traversal and must never reach path construction.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		default:
			return false
		}
	}
	return true
}
