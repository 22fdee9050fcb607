// Package archive unpacks verified release archives and locates the nested
// platform installer inside the extracted tree. Extraction only ever runs
// against archives that already passed the checksum gate.
package archive
