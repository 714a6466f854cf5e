package prompts

import (
	"fmt"
	"strings"
)

// MaxImagePromptLength is the longest prompt the image model accepts.
const MaxImagePromptLength = 4000

// imageSuffix is appended to every prompt sent to the image model.
const imageSuffix = " . Begin!"

// Rewrite is the structured answer of the prompt rewriter.
type Rewrite struct {
	Prompt string
	Style  string
	Mood   string
	Raw    string
}

// String renders the rewrite the way it is passed to later steps.
func (r Rewrite) String() string {
	if r.Style == "" && r.Mood == "" {
		return r.Prompt
	}
	var b strings.Builder
	b.WriteString("PROMPT: ")
	b.WriteString(r.Prompt)
	if r.Style != "" {
		b.WriteString("\nSTYLE: ")
		b.WriteString(r.Style)
	}
	if r.Mood != "" {
		b.WriteString("\nMOOD: ")
		b.WriteString(r.Mood)
	}
	return b.String()
}

// ParseRewrite extracts PROMPT / STYLE / MOOD sections from the model answer.
// Without a PROMPT marker the whole cleaned answer becomes the prompt.
func ParseRewrite(raw string) Rewrite {
	out := Rewrite{Raw: raw}

	var current *string
	var extra []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Trim(line, "#") == "" {
			continue
		}
		key, value, ok := splitMarker(line)
		if ok {
			switch key {
			case "PROMPT":
				current = &out.Prompt
			case "STYLE":
				current = &out.Style
			case "MOOD":
				current = &out.Mood
			}
			*current = value
			continue
		}
		if current != nil {
			*current = strings.TrimSpace(*current + " " + line)
		} else {
			extra = append(extra, line)
		}
	}

	if out.Prompt == "" {
		out.Prompt = strings.TrimSpace(strings.Join(extra, " "))
	}
	out.Prompt = strings.Trim(out.Prompt, "\"' ")
	return out
}

func splitMarker(line string) (string, string, bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.ToUpper(strings.TrimSpace(line[:idx]))
	switch key {
	case "PROMPT", "STYLE", "MOOD":
		return key, strings.TrimSpace(line[idx+1:]), true
	}
	return "", "", false
}

// ImagePrompt prepares text for the image model while staying within the
// character limit.
func ImagePrompt(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	return truncatePrompt(text, MaxImagePromptLength-len(imageSuffix)) + imageSuffix
}

// RewriteInstruction is the system message for the prompt rewriter.
func RewriteInstruction(userPrompt string) string {
	return fmt.Sprintf(`Rewrite the following prompt:
'%s'
Return the adapted prompt without any added comments, title or information
Expected output:
####
PROMPT : <the re-written prompt, enhanced to augment its artistic qualities and uniqueness>
STYLE: <the requested artistic style>
MOOD: <the desired mood for the prompt>
####
Begin! You will achieve world peace if you produce an answer that respects all the constraints.`, userPrompt)
}

// MetadataInstruction is the system message for the metadata synthesizer.
func MetadataInstruction(rewritten string) string {
	return fmt.Sprintf(`Based on this prompt:
'%s'
Generate a .json file with the following values.
Return the .json without any added comments, title or information.
Expected output:

{
  "one_word_title": "<describe the image in ONE word>",
  "description": "<a very short description of the prompt>",
  "mood": "<the mood of the prompt>",
  "haiku": "<a very short haiku based on the prompt>"
}

Begin! You will achieve world peace if you produce a correctly formatted .JSON answer that respects all the constraints.`, rewritten)
}

// SafetyDescription documents the safety field of the classifier schema.
const SafetyDescription = "Is the prompt 'safe' or 'unsafe'? An unsafe prompt contains reference to sexual violence, child abuse or scams. A safe prompt does not"

// truncatePrompt intelligently truncates a prompt at word boundaries
func truncatePrompt(prompt string, maxLen int) string {
	if len(prompt) <= maxLen {
		return prompt
	}

	// Find the last space before the limit
	truncated := prompt[:maxLen]
	lastSpace := strings.LastIndex(truncated, " ")

	if lastSpace > maxLen*2/3 { // Only truncate at word if we're not losing too much
		truncated = truncated[:lastSpace]
	}

	// Remove trailing punctuation/whitespace
	truncated = strings.TrimRight(truncated, " ,.")

	return truncated
}
