// Package frame decodes the engine's per-frame outputs into typed records.
//
// The engine reports all agents of a frame as one flat float buffer with a
// fixed stride of [Stride] values per agent:
//
//	posX, posY, dirX, dirY, velX, velY, radius
//
// [Decode] partitions that buffer into [AgentSnapshot] records in their
// original order. The ordinal of a record is the only identity the engine
// provides, so it doubles as the selection key for [ParseDebugInfo] fetches.
package frame
