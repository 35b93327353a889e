// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the Genesis backend generation
// service.
//
// The service accepts a backend project configuration, fans the work out
// to specialized LLM agents (architecture, framework code, data models,
// auth), and relays the generated code back to the caller. It can also
// bootstrap the development datastores the generated backends run
// against.
//
// Usage:
//
//	./genesisd
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	JWT_SECRET - enables bearer auth on mutating endpoints
//	DATABASE_URL - PostgreSQL connection string (audit trail + bootstrap)
//	MYSQL_DSN, MONGO_URI, REDIS_ADDR - dev datastore connections
//	ANTHROPIC_API_KEY, OPENAI_API_KEY, DEEPSEEK_API_KEY - provider keys
//	AWS_REGION, BEDROCK_MODEL_ID - AWS Bedrock provider
package main

import (
	"log"

	"genesis/backend/server"
)

func main() {
	if err := server.Run(); err != nil {
		log.Fatalf("genesisd: %v", err)
	}
}
