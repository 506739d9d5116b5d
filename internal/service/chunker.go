package service

// ChunkText splits text into overlapping fixed-size windows. Text at or under
// chunkSize comes back as a single chunk; otherwise the window advances by
// chunkSize−overlap per step until its start passes the end of the text.
// Windows are raw slices, no trimming. Operates on runes so multi-byte
// characters are never split.
//
// Callers must validate the parameters with config.ValidateChunking first;
// overlap ≥ chunkSize would make the window advance by zero or backwards.
func ChunkText(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
