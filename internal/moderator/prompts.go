package moderator

import (
	"fmt"
	"math/rand"
	"strings"

	"voicematch/backend/internal/capability"
)

// FallbackUtterance is what the moderator says when a provider call fails or
// times out. Degraded moderation is always preferred over a visible error.
const FallbackUtterance = "Let's keep chatting — what would you like to talk about?"

// conversationStarters is the fixed prompt bank used once a conversation has
// genuinely stalled. Drawing from it instead of freeform generation bounds
// cost and latency, and works even when the generator is unreachable.
var conversationStarters = []string{
	"What's something interesting that happened to you this week?",
	"If you could travel anywhere right now, where would you go?",
	"What's your favorite way to spend a weekend?",
	"Tell me about a hobby you're passionate about!",
	"What's the best advice you've ever received?",
}

func pickStarter() string {
	return conversationStarters[rand.Intn(len(conversationStarters))]
}

// seedPrompt describes the moderator's job and both participants to the
// generator when a room starts.
func seedPrompt(a, b *capability.Profile) string {
	return fmt.Sprintf(
		"You are a friendly moderator facilitating a voice conversation between two people. "+
			"Keep the conversation flowing, ask engaging questions when there is silence, and help "+
			"the participants find common ground. Keep replies to one or two sentences. "+
			"Participants: %s (interests: %s) and %s (interests: %s).",
		a.DisplayName, interestsOf(a), b.DisplayName, interestsOf(b))
}

// staticGreeting is used when the generator cannot produce an opening line.
func staticGreeting(a, b *capability.Profile) string {
	return fmt.Sprintf("Hi %s and %s! I'm your moderator for today's chat. "+
		"I'm here to help keep the conversation flowing. How are you both doing today?",
		a.DisplayName, b.DisplayName)
}

func interestsOf(p *capability.Profile) string {
	if len(p.Interests) == 0 {
		return "none specified"
	}
	return strings.Join(p.Interests, ", ")
}
