package ariba

import (
	"github.com/ajitpratap0/aribaflow/pkg/config"
	"github.com/ajitpratap0/aribaflow/pkg/connector/core"
	"github.com/ajitpratap0/aribaflow/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource(sourceName, func(cfg *config.Config) (core.Source, error) {
		return NewSource(), nil
	})
}
