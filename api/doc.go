// Package api provides request/response types and OpenAPI documentation for
// the Helmsman HTTP API.
//
// # API Overview
//
// Helmsman provides a RESTful API for:
//   - Hybrid multi-signal regulatory passage retrieval
//   - Utility feedback for the self-learning reranker
//   - Health monitoring and metrics
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # OpenAPI Specification
//
// Swagger annotations live on the handler and type declarations; regenerate
// the specification with:
//
//	swag init -g cmd/helmsman/main.go -o api --parseDependency --parseInternal
package api
