package badger

// Key prefixes for different data types
const (
	checkpointPrefix = "tblchk:"
)

// makeCheckpointKey generates the key of a table checkpoint.
// Format: prefix:table
func makeCheckpointKey(table string) []byte {
	buf := make([]byte, 0, len(checkpointPrefix)+len(table))
	buf = append(buf, checkpointPrefix...)
	return append(buf, table...)
}
