// Package checkpoint persists training snapshots in the .born format.
//
// Every checkpoint is written with format v2:
//
//	Fixed header (64 bytes):
//	  0x00-0x03: Magic "BORN"
//	  0x04-0x07: Version (uint32 LE)
//	  0x08-0x0B: Flags (uint32 LE)
//	  0x0C-0x0F: Reserved
//	  0x10-0x17: Header size (uint64 LE)
//	  0x18-0x1F: Data size (uint64 LE)
//	  0x20-0x3F: SHA-256 checksum of header JSON + tensor data
//	[Header: JSON metadata]
//	[Padding to 64 bytes]
//	[Tensor data: float32 LE]
//
// A Snapshot carries model tensors, optimizer tensors (stored under the
// "optimizer." prefix), and the epoch/step position of the run. FileStore
// writes snapshots atomically and retries transient filesystem errors.
package checkpoint
