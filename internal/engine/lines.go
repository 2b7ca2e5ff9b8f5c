package engine

import "slices"

// PickLine returns the next unused canned line for style and the state with
// that line recorded. Rotation starts at an offset derived from the seed;
// once every line of a style has been used the style starts over. An unknown
// style yields an empty line and the state unchanged.
func (e *Engine) PickLine(s ConversationState, style string) (string, ConversationState) {
	lines := e.rubric.CannedLines[style]
	if len(lines) == 0 {
		return "", s
	}

	next := s.Clone()
	if next.UsedResponses == nil {
		next.UsedResponses = make(map[string][]int)
	}
	used := next.UsedResponses[style]
	if len(used) >= len(lines) {
		used = nil
	}

	start := int(uint64(s.Seed) % uint64(len(lines)))
	for k := range len(lines) {
		idx := (start + k) % len(lines)
		if slices.Contains(used, idx) {
			continue
		}
		next.UsedResponses[style] = append(used, idx)
		return lines[idx], next
	}
	// Unreachable: used has fewer entries than lines.
	return lines[start], next
}
