// Package ollama implements the llm.Backend contract for a local Ollama
// service, speaking its native HTTP API (/api/chat, /api/tags,
// /api/version, /api/ps, /api/pull).
package ollama
