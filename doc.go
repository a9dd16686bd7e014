// Package chat runs multi-round, tool-using conversations against a streaming
// chat-completion backend.
//
// A turn starts with a user message and loops: request a completion with the
// full history, stream the response while surfacing content as it arrives,
// assemble any requested tool calls, execute them in order through a Gateway,
// append the results, and request again. The loop ends when the model answers
// without tool calls (Done) or the transport fails (Failed).
package chat
