// Package internaldefs holds the shared metric name table used by the
// exporters under metrics/export. It is not part of the public API.
package internaldefs
