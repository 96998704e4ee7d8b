// Package serialization implements the native .born checkpoint format.
//
// The .born format is a simple binary container for named tensors:
//
//	v1 layout:
//	  [4 bytes: Magic "BORN"]
//	  [4 bytes: Version (uint32 LE)]
//	  [4 bytes: Flags (uint32 LE)]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON metadata]
//	  [Tensor data: raw bytes, 64-byte aligned]
//
//	v2 layout:
//	  [64 bytes: fixed header - magic, version, flags, header size,
//	   data size, SHA-256 of the data section]
//	  [Header: JSON metadata]
//	  [Tensor data: raw bytes, 64-byte aligned]
//
// The JSON header lists tensors in file order. Training checkpoints carry a
// CheckpointMeta block and store optimizer state under the "optimizer." prefix
// next to the model parameters.
//
// Example usage:
//
//	if err := serialization.WriteFile("model.born", sd, header, serialization.FormatVersionV2); err != nil {
//	    return err
//	}
//
//	reader, err := serialization.NewBornReader("model.born")
//	if err != nil {
//	    return err
//	}
//	defer reader.Close()
//	stateDict, err := reader.ReadStateDict()
package serialization
