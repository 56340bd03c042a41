// Package core holds the numeric helpers and processing configuration shared
// by the engine and its modules.
package core
