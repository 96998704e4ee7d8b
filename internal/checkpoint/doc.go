// Package checkpoint resolves the inputs accepted by the state dict
// reconciler into a single in-memory Container.
//
// A Source is one of three variants:
//
//	checkpoint.FromStateDict(sd)       // flat in-memory mapping
//	checkpoint.FromContainer(c)        // nested mapping with metadata
//	checkpoint.FromFile("model.born")  // .safetensors or .born on disk
//
// Resolve copies tensors to host memory and never mutates the input.
// Container.StateDict returns the tensors to reconcile, unwrapping a nested
// "state_dict" child when one is present.
package checkpoint
