// Package aoe2rec reads, rewrites and writes Age of Empires II: Definitive
// Edition recorded games (.aoe2record).
//
// A recording is laid out as:
//  - u32 header length (including itself), u32 next chapter offset
//  - raw DEFLATE header, inflating to "VER 9.4\x00", the save version and
//    the lobby settings whose layout depends on that version
//  - 32 bytes of log metadata (log version 5, recording force id, ...)
//  - operation records until end of file: [tag:u32][payload]
//
// Decode and ReadRecording parse the envelope and header; Stream and
// ReadOperation read the operations. Header edits go through PatchList and
// Header.Apply so that player offsets stay valid; Encode writes the
// envelope back from Header.Raw.
package aoe2rec
