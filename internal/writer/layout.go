package writer

import (
	"fmt"
	"path/filepath"
)

// compressionExt returns the filename suffix a Compression codec adds
// after the dialect extension, e.g. "file.csv.gz".
func compressionExt(c string) string {
	switch c {
	case "gzip":
		return ".gz"
	case "zstd":
		return ".zst"
	case "snappy":
		return ".snappy"
	default:
		return ""
	}
}

// ChunkFilename names one chunk's data file: "<tableBasename>@<ordinal>.ext",
// or "<tableBasename>@@<ordinal>.ext" for the final chunk of the table
// (spec.md §6's tail-marker convention).
func ChunkFilename(tableBasename string, ordinal int, last bool, dialectExt, compression string) string {
	sep := "@"
	if last {
		sep = "@@"
	}
	return fmt.Sprintf("%s%s%d.%s%s", tableBasename, sep, ordinal, dialectExt, compressionExt(compression))
}

// DumpingPath returns the in-progress name a data file is created under
// before its final atomic rename (spec.md §3/§6).
func DumpingPath(dir, filename string) string {
	return filepath.Join(dir, filename+".dumping")
}

// FinalPath returns the finished path for filename within dir.
func FinalPath(dir, filename string) string {
	return filepath.Join(dir, filename)
}

// IndexFilename names a data file's .idx sidecar.
func IndexFilename(dataFilename string) string {
	return dataFilename + ".idx"
}
