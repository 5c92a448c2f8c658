// Package gitcode implements a forge.Provider for GitCode (and other
// Gitee-style forges) over the v5 REST API using plain HTTP with bearer
// token authentication.
//
// The file_list endpoint returns the whole repository as a flat list of
// paths where directories carry a trailing slash; List rebuilds an
// ls-like view from it.
package gitcode
