package git

import "strings"

// AgentTrailer marks a commit as authored by an AI agent.
const AgentTrailer = "Lineage-Agent"

// Trailer is one "Key: value" line of a message's trailer block.
type Trailer struct {
	Key   string
	Value string
}

// Trailers parses the trailing "Key: value" paragraph of a commit message,
// in message order. Keys keep their original spelling.
func Trailers(message string) []Trailer {
	lines := strings.Split(strings.TrimRight(message, "\n"), "\n")
	start := len(lines)
	for start > 0 && strings.TrimSpace(lines[start-1]) != "" {
		start--
	}
	// A message that is one paragraph has a subject, not trailers.
	if start == 0 {
		return nil
	}

	var trailers []Trailer
	for _, line := range lines[start:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			return nil
		}
		trailers = append(trailers, Trailer{Key: key, Value: strings.TrimSpace(value)})
	}
	return trailers
}

// AgentFromMessage returns the agent named by the message's
// Lineage-Agent trailer, or "" when the commit is human-authored. The key
// matches case-insensitively and the last matching line wins.
func AgentFromMessage(message string) string {
	agent := ""
	for _, t := range Trailers(message) {
		if strings.EqualFold(t.Key, AgentTrailer) {
			agent = t.Value
		}
	}
	return agent
}
