package mcworld

// ProgressFunc receives each archive file after it has been written to
// scratch storage, or visited in path mode. Calls are made from the
// extracting goroutine.
type ProgressFunc func(Entry)
