// Package yachtsy is a client for the Yachtsy marketplace agent, an
// OpenAI-compatible chat completions endpoint that routes boat and sailing
// questions to specialized sub-agents.
//
// Agent streams answers from the upstream API. CachedAsker layers a
// storage.Storage answer cache over any Asker so repeated questions from the
// same user are served locally until their TTL lapses.
package yachtsy
