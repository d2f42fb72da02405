package lora

// chunk is one fragment of an outbound packet, at most maxPayload bytes.
type chunk struct {
	seq     uint8
	total   uint8
	payload []byte
}

// fragment slices a packet into chunks of at most maxPayload bytes. The
// last chunk may be shorter. An empty packet becomes a single chunk with
// an empty payload so the receiver still observes a complete packet.
func fragment(p []byte) []chunk {
	total := (len(p) + maxPayload - 1) / maxPayload
	if total == 0 {
		total = 1
	}
	chunks := make([]chunk, 0, total)
	for i := 0; i < total; i++ {
		start := i * maxPayload
		end := start + maxPayload
		if end > len(p) {
			end = len(p)
		}
		chunks = append(chunks, chunk{
			seq:     uint8(i),
			total:   uint8(total),
			payload: p[start:end],
		})
	}
	return chunks
}
