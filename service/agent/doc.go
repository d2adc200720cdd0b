// Package agent holds the executor registry. Executors perform the actual
// step work (in the full product they are LLM-backed agents); the engine
// looks them up by the agent-type string a step declares, so new agent kinds
// can be added without touching the engine.
package agent
