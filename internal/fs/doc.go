// Package fs abstracts file system access for the result-file reader and
// the staging layer, so IO failures can be injected in tests.
package fs
