// Package cache stores synthesized narration so that repeated tours do not
// call the speech service again. It has an in-memory LRU level (L1) and a
// zstd-compressed disk level (L2) that survives restarts.
package cache
