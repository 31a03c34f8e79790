// Package mcp serves link ranking over the Model Context Protocol.
//
// Tools:
//
//	rank_links      rank the links of a URL, inline HTML or captured snapshot
//	latest_ranking  return the most recent snapshot seen by the server
//
// rank_links runs the analysis synchronously and returns the final order as
// structured output, plus a numbered text rendering for clients that only
// read text content. The server runs on the stdio transport.
package mcp
