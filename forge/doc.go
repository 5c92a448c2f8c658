// Package forge defines the capability interface every git hosting platform
// variant implements so that files can be listed, read and contributed
// without a local clone.
//
// The Provider interface abstracts listing, blob reads, existence checks,
// branch creation, file upload and pull request creation. Implementations
// exist for GitHub, GitLab and GitCode in sub-packages. Funcs is a
// convenience adapter that lets plain functions satisfy the interface.
//
// Every implementation reports failures with the sentinel errors declared in
// this package (ErrNotFound, ErrAuthFailure, ...), usually wrapped in an
// *APIError carrying the HTTP status and any retry-after hint.
package forge
