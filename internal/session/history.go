package session

// Window bounds a history before it is handed to a backend, keeping the most
// recent turns. The turn limit applies first, then oldest turns are dropped
// until the estimated token total fits. Zero limits mean unlimited.
func Window(turns []Turn, maxTurns, maxTokens int) []Turn {
	if len(turns) == 0 {
		return turns
	}

	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	if maxTokens <= 0 {
		return turns
	}

	total := 0
	for _, t := range turns {
		total += EstimateTokens(t.Content)
	}
	for total > maxTokens && len(turns) > 0 {
		total -= EstimateTokens(turns[0].Content)
		turns = turns[1:]
	}
	return turns
}

// EstimateTokens approximates the token count of text. ASCII runs at roughly
// four characters per token; non-ASCII scripts are weighted at one character
// per token.
func EstimateTokens(text string) int {
	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
		} else {
			weight += 4
		}
	}
	return (weight + 3) / 4
}
