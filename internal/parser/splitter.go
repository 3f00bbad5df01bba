package parser

import "strings"

// splitText splits content into chunks of at most chunkSize characters.
// Every chunk is a contiguous span of the trimmed content and consecutive
// chunks share an exact overlap region: the next chunk starts overlap
// characters before the previous cut. Cut points prefer paragraph breaks,
// then sentence breaks, then a hard cut at the size limit.
func splitText(content string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= chunkSize {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < len(content) {
		hardEnd := start + chunkSize
		if hardEnd >= len(content) {
			chunks = append(chunks, content[start:])
			break
		}
		end := cutPoint(content, start, hardEnd, overlap)
		chunks = append(chunks, content[start:end])
		start = end - overlap
	}
	return chunks
}

// cutPoint picks the split position in (start, hardEnd]. Break points are
// searched only in the trailing half of the window so chunks do not
// degenerate into slivers, and never inside the overlap region carried
// from the previous chunk: the cut must land past start+overlap or the
// next chunk could not share the full overlap span.
func cutPoint(content string, start, hardEnd, overlap int) int {
	floor := start + (hardEnd-start)/2
	if min := start + overlap; floor < min {
		floor = min
	}
	window := content[floor:hardEnd]
	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return floor + i + 2
	}
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if i := strings.LastIndex(window, sep); i >= 0 {
			return floor + i + len(sep)
		}
	}
	return hardEnd
}
