// Package commitmsg composes and parses the commit messages, branch names
// and pull request texts produced by a submission.
//
// A composed message is the user's text followed by a trailer block:
//
//	<message>
//
//	Signed-off-by: Name <email>
//	X-Content-Hash: <hex>
//
// The sign-off line is optional and always precedes the content hash so
// that the hash is the last line of every message.
package commitmsg
