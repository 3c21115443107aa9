// Package mock provides a scriptable llm.Backend used by the runtime's
// tests. Statuses, model listings, chat responses and failures are all
// pre-programmed; every call is logged for assertions.
package mock
