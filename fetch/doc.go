// Package fetch implements the read side of vkt: ordered listings of a
// remote path and downloads of a remote file or whole directory into the
// local filesystem. Directory downloads run concurrently and report a
// result per file.
package fetch
