// Package cache implements a multi-tier cache for AI text operation
// responses (summarization, sentiment, key points, question generation,
// Q&A).
//
// Responses are keyed deterministically from the request tuple (text,
// operation, options, question); long texts are content-hashed so keys stay
// bounded. Small-text responses are served from an in-process FIFO tier,
// everything is stored in Redis with per-operation TTLs, and large payloads
// are zlib-compressed on the wire.
//
// The cache is built to never get in the way of the request path: when
// Redis is down, reads miss and writes are dropped, with the degradation
// visible through logs and the monitoring subpackage rather than through
// errors.
package cache
