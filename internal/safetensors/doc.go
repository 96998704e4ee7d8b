// Package safetensors reads and writes the SafeTensors container format.
//
// Layout:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header, optionally space padded]
//	[tensor data: raw little-endian bytes]
//
// The header maps tensor names to {dtype, shape, data_offsets}; offsets are relative
// to the start of the data section. An optional "__metadata__" entry holds string
// key/value pairs.
//
// Files are opened read-only and memory mapped where the platform supports it, so
// only the tensors actually requested are paged in. A Reader must be closed to
// release the mapping:
//
//	r, err := safetensors.Open("model.safetensors")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	sd, err := r.ReadStateDict()
package safetensors
