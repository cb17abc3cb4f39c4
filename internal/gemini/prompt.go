package gemini

import (
	"fmt"
	"strings"

	"replypilot/internal/generate"
)

// SystemInstruction frames every generation request.
const SystemInstruction = `You write short replies to social media posts on behalf of an account owner.

Rules:
- Reply in the same language as the post.
- One or two sentences. No hashtags unless the post uses them.
- Add something: a perspective, a question, or a concrete detail. Never a bare "great post".
- Do not mention that you are an AI or that the reply was generated.

Output strict JSON: {"comment": "<the reply text>"}. No other content.`

// BuildPrompt renders the first-draft prompt for a post.
func BuildPrompt(req generate.Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a reply to this post by @%s:\n\n%s\n\n", req.AuthorHandle, req.PostText)
	fmt.Fprintf(&b, "Engagement so far: %d likes, %d reposts, %d replies (trending score %.0f/100).\n",
		req.Likes, req.Reposts, req.Replies, req.Score)

	if req.StyleProfile != "" {
		fmt.Fprintf(&b, "\nVoice and style of the account owner:\n%s\n", req.StyleProfile)
	}

	b.WriteString("\nOutput JSON only.")
	return b.String()
}

// BuildRefinePrompt renders a refinement turn against an existing chat
// context.
func BuildRefinePrompt(hint string) string {
	if strings.TrimSpace(hint) == "" {
		return "Rewrite the reply: keep the same point but make it tighter and more natural. Output JSON only."
	}
	return fmt.Sprintf("Rewrite the reply with this guidance: %s\nOutput JSON only.", hint)
}
