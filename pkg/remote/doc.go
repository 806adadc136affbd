// Package remote is the JSON client for the content hierarchy and metadata
// service. It implements the collaborator interfaces consumed by package
// batch: listing the published children of a node and resolving a file
// resource ID to its download URL.
//
// Credentials are opaque: a token supplied by the host is attached to every
// request and never interpreted here.
package remote
