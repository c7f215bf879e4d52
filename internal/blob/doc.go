// Package blob is mcpd's component L: an S3-backed object store for module
// archive downloads (internal/modloader) and call-content offload
// (internal/callrecord, triggered on mcperrors.KindItemTooLarge).
package blob
