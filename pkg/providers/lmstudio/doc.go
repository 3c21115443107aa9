// Package lmstudio implements the llm.Backend contract for a local
// LM Studio server, using its REST API (/api/v0/models for discovery,
// /api/v0/chat/completions for completions).
package lmstudio
