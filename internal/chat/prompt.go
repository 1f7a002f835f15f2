package chat

import (
	"fmt"
	"strings"

	"terratruce-gateway/internal/llm"
)

const systemPrompt = `You are the Terra Truce property assistant.

Goals:
1. Recommend at least 5 specific plots or properties. For each give, flush left:
   1. [Name] - [Price]
   2. [Location]
   3. • [Short reason]
   4. **[Link]** to a listing search on MagicBricks, 99acres or Housing.com for that locality.
2. Give a single overall risk score from 0 to 100 for the area. No breakdown.
3. Be confident and direct. Do not hedge or say data is unavailable.

Output strict JSON with English values only:
{
  "answer": "Here are 5 suggestions...\n\n1. [Name] - [Price]\n[Location]\n• [Reasoning]\n[[Link]](URL)\n\n2. ...",
  "risk_score": number
}

Context:
%s`

func contextBlock(c Context) string {
	location := c.Location
	if strings.TrimSpace(location) == "" {
		location = "Not specified"
	}
	geo := "Unknown"
	if c.UserLocation != nil {
		geo = fmt.Sprintf("%g, %g", c.UserLocation.Lat, c.UserLocation.Lng)
	}
	return fmt.Sprintf("Current Location Context: %s.\nUser Geolocation: %s.\nRisk Data Available: %t.",
		location, geo, c.hasRiskSummary())
}

// buildContents converts chat history into Gemini contents. System messages
// are dropped and the instructions ride on the first user turn, since the
// request carries no separate system slot.
func buildContents(history []llm.Message, c Context) []llm.Content {
	instructions := fmt.Sprintf(systemPrompt, contextBlock(c))

	contents := make([]llm.Content, 0, len(history))
	first := true
	for _, m := range history {
		role := llm.GeminiRole(m.Role)
		if role == "" {
			continue
		}
		text := m.Content
		if first && role == llm.RoleUser {
			text = instructions + "\n\nUser request: " + text
			first = false
		}
		contents = append(contents, llm.Content{Role: role, Parts: []llm.Part{{Text: text}}})
	}

	if len(contents) == 0 {
		contents = append(contents, llm.Content{Role: llm.RoleUser, Parts: []llm.Part{{Text: instructions + "\n\nHello"}}})
	}
	return contents
}
