// Package sources pulls in every source connector so that importing
// this package registers them all.
package sources

import (
	// Import source connectors to trigger init() registration
	_ "github.com/ajitpratap0/aribaflow/pkg/connector/sources/ariba"
)
