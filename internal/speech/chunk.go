package speech

// Chunk splits text into pieces of at most size runes. Boundaries fall at
// fixed offsets, not at word or sentence breaks. A non-positive size returns
// the text as a single chunk.
func Chunk(text string, size int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}

	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
