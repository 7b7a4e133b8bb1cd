// Package scene maps tracker positions between the normalized internal plane
// and the physical coordinates of the stage.
//
// Internal coordinates place x and y in [0,1] with the origin at the top-left
// of the tracking plane. Scene coordinates are bounded by the active Preset:
// X grows left to right across [XMin, XMax], Y grows toward the audience so
// the internal y axis is inverted, and Z is a height in meters passed through
// with an optional per-preset offset.
//
// Config owns the named presets and the currently active one. Callers read
// Active once per operation and pass the returned Bounds to ToScene or
// ToInternal so a concurrent mode switch never mixes two presets inside a
// single conversion batch.
package scene
