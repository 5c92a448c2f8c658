// Package config loads, validates and edits the vkt
// configuration file.
//
// The file is TOML with the sections [user], [remote],
// [repo] and [template]. Every key can be overridden
// by an environment variable named
// VKT_<SECTION>_<KEY>, e.g. VKT_REMOTE_TOKEN.
package config
