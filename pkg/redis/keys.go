package redis

// Persisted memory namespaces.
const (
	// AgentMemoryKey holds the append-only list of memory items
	// ({type: decision|action|observation, content, timestamp}).
	AgentMemoryKey = "agent_memory"

	// AgentContextKey holds the latest context snapshot.
	AgentContextKey = "agent_context"
)
