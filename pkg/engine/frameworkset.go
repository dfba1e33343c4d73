package engine

// BuildFrameworkSet combines core and custom frameworks into a deduplicated
// set. Frameworks are added in order, core first, and any framework whose
// identity was already added is skipped: first occurrence wins, so a core
// definition always shadows a custom duplicate.
func BuildFrameworkSet(core, custom []*Framework) []*Framework {
	seen := make(map[FrameworkID]struct{}, len(core)+len(custom))
	out := make([]*Framework, 0, len(core)+len(custom))

	add := func(fws []*Framework) {
		for _, fw := range fws {
			if fw == nil {
				continue
			}
			if _, ok := seen[fw.ID]; ok {
				continue
			}
			seen[fw.ID] = struct{}{}
			out = append(out, fw)
		}
	}

	add(core)
	add(custom)
	return out
}
