// Package aribaflow extracts analytical reporting data from SAP Ariba.
//
// The connector speaks the analytics-reporting API's asynchronous job
// protocol: it discovers a view template's schema from live metadata,
// submits extraction jobs page by page, polls each job to completion
// under the service's day/hour/minute/second rate limits, downloads the
// zipped result files, and decodes their JSON documents into typed
// records.
//
// # Architecture
//
// The module follows a layered connector design:
//
//   - pkg/clients: HTTP execution (pooled client, circuit breaker,
//     rate-limit governor, OAuth client-credentials token provider)
//   - pkg/connector/core: Source interface, Schema model, record streams
//   - pkg/connector/base: shared connector lifecycle, retry policy,
//     health checking, progress reporting
//   - pkg/connector/sources/ariba: the extraction source itself
//   - cmd/aribaflow: cobra CLI with discover and extract commands
//
// # Quick Start
//
// Discover a view template's schema and extract its records:
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/aribaflow/pkg/config"
//	    "github.com/ajitpratap0/aribaflow/pkg/connector/registry"
//	    _ "github.com/ajitpratap0/aribaflow/pkg/connector/sources"
//	)
//
//	cfg := config.NewConfig("ariba")
//	// ... fill in cfg.Connection and cfg.Extraction ...
//
//	source, _ := registry.CreateSource("ariba", cfg)
//	ctx := context.Background()
//	_ = source.Initialize(ctx, cfg)
//	defer source.Close(ctx)
//
//	schema, _ := source.Discover(ctx)
//	stream, _ := source.Read(ctx)
//	for record := range stream.Records {
//	    // consume record.Data, then record.Release()
//	}
//	_ = schema
package aribaflow
