package prompts

import "strings"

// DefaultSystemInstruction is used when no system prompt is configured.
const DefaultSystemInstruction = "You are a helpful assistant, you use the tools when needed"

// SystemInstruction returns configured, or the default when it is blank.
func SystemInstruction(configured string) string {
	if s := strings.TrimSpace(configured); s != "" {
		return s
	}
	return DefaultSystemInstruction
}
