// Package statedict reconciles checkpoints against the tensors a model expects.
//
// A Reconciler resolves a checkpoint source, unwraps a nested "state_dict",
// applies a user name map, strips the "module." prefix left by replicated
// training wrappers, diffs the result against the model's current state and
// assigns the entries whose names and shapes match.
//
//	r, err := statedict.New(model,
//	    statedict.WithNameMap(map[string]string{"fc.w": "fc.weight"}),
//	    statedict.WithExclude("num_batches_tracked"),
//	)
//	if err != nil {
//	    return err
//	}
//	report, err := r.Load(checkpoint.FromFile("model.safetensors"), false)
package statedict
