package partitionkey

import (
	"regexp"

	"mcpd/internal/mcperrors"
)

// DefaultPartition is the reserved key for the locally preloaded
// configuration (no persistence, no async dispatch).
const DefaultPartition = "default"

var endpointIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Key is the assembled routing identity for a request.
type Key struct {
	// PartitionKey is "endpoint_id" or "endpoint_id#part_id".
	PartitionKey string
	// EndpointID is the raw path segment.
	EndpointID string
	// PartID is the optional header value, empty if absent.
	PartID string
}

// Assemble derives a Key from the endpoint path segment and optional part
// header, per spec.md §4.A. endpointID must match [A-Za-z0-9_-]+.
func Assemble(endpointID, partID string) (Key, error) {
	if !endpointIDPattern.MatchString(endpointID) {
		return Key{}, mcperrors.InvalidArgument("invalid endpoint_id: %q", endpointID)
	}

	partitionKey := endpointID
	if partID != "" {
		partitionKey = endpointID + "#" + partID
	}

	return Key{PartitionKey: partitionKey, EndpointID: endpointID, PartID: partID}, nil
}

// IsDefault reports whether k is the reserved default partition.
func (k Key) IsDefault() bool {
	return k.PartitionKey == DefaultPartition
}
