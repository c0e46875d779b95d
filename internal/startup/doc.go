// Package startup handles application configuration loading and the
// structured startup/shutdown logging sequence.
package startup
