// Package modloader implements mcpd's component C: resolving a
// (package, module, class) triple to a constructed handler, downloading and
// extracting the module's archive from the blob store on first use when the
// configuration names a source, per spec.md §4.C.
package modloader
