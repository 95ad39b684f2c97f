package connlimit

// LimitPath builds the path to a principal's limit file by joining the
// directory and the name with a single separator. No cleaning or
// normalization is applied; ValidName is the traversal defense, and a
// cleaned path would only obscure what is actually opened.
func LimitPath(dir, name string) string {
	return dir + "/" + name
}
