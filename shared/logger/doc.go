// Copyright 2025 Genesis
// SPDX-License-Identifier: Apache-2.0

/*
Package logger provides structured JSON logging for Genesis components.

# Overview

The logger outputs one JSON object per line to stdout, making logs easily
consumable by the compose stack, CloudWatch, or an ELK pipeline.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (server, registry, generator, etc.)
  - Instance ID and container name (for correlating compose services)
  - Project ID (the backend project a generation run belongs to)
  - Request ID (for request correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("server")

Log messages with project and request context:

	log.Info("ecommerce-api", "req-456", "Generation started", map[string]interface{}{
	    "framework": "fastapi",
	})

Log errors with status codes:

	log.ErrorWithCode("ecommerce-api", "req-456", "Generation failed", 502, err, nil)

Log with duration tracking:

	start := time.Now()
	// ... do work ...
	log.InfoWithDuration("ecommerce-api", "req-456", "Generation completed",
	    float64(time.Since(start).Milliseconds()), nil)

# Environment Variables

The logger reads these environment variables:

  - INSTANCE_ID: Deployment instance identifier
  - LOG_LEVEL: Minimum level to emit (default INFO)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
