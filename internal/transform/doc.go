// Package transform applies mutation strategies at key paths inside nested
// state trees.
//
// Every function here is pure. Apply copies each object on the touched path
// and shares everything else with its input, so two state versions differ
// only along the path that changed. Callers may keep old versions around and
// may call Apply concurrently.
package transform
