// Package openai implements the llm.Backend contract for the OpenAI
// cloud service through the authenticated SDK. This is the only backend
// whose wire format carries tool calls.
package openai
