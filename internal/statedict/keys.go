package statedict

import (
	"slices"
	"strings"

	"github.com/born-ml/statedict/internal/tensor"
)

// ModulePrefix is prepended to parameter names by replicated training wrappers.
const ModulePrefix = "module."

// remap applies nameMap to ckpt. Only names listed in nameMap survive unless
// keepUnmapped is set; a listed name absent from ckpt contributes nothing.
// Keys are visited in sorted order so collisions resolve deterministically.
func remap(ckpt *tensor.StateDict, nameMap map[string]string, keepUnmapped bool) *tensor.StateDict {
	if len(nameMap) == 0 {
		return ckpt
	}

	out := tensor.NewStateDict()
	if keepUnmapped {
		for name, raw := range ckpt.All() {
			if _, mapped := nameMap[name]; !mapped {
				out.Set(name, raw)
			}
		}
	}

	keys := make([]string, 0, len(nameMap))
	for k := range nameMap {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, src := range keys {
		raw, ok := ckpt.Get(src)
		if !ok {
			continue
		}
		out.Set(nameMap[src], raw)
	}
	return out
}

// stripModulePrefix removes one leading "module." from every name.
// A later entry wins when two names collapse onto the same key.
func stripModulePrefix(ckpt *tensor.StateDict) *tensor.StateDict {
	out := tensor.NewStateDict()
	for name, raw := range ckpt.All() {
		out.Set(strings.TrimPrefix(name, ModulePrefix), raw)
	}
	return out
}
