// Package prompts builds what the agent loop sends to the generator.
//
// Prompt text is Go code rather than config files because it is program
// logic: the conversation layout is tested alongside the loop that
// depends on it. Only the system instruction is user-configurable
// (agent.system_prompt in config.yaml).
//
// Composition is a pure function of a ConversationState. The same state
// always yields the same messages and the same transcript; nothing here
// reads clocks or random sources.
package prompts
