package telemetry

import (
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"
)

// InstrumentGorm registers the otelgorm plugin so every query becomes a span.
// Query variables are left out of span attributes.
func InstrumentGorm(db *gorm.DB, dbSystem string) error {
	if dbSystem == "" {
		dbSystem = "postgresql"
	}
	return db.Use(otelgorm.NewPlugin(
		otelgorm.WithDBName(dbSystem),
		otelgorm.WithoutQueryVariables(),
	))
}
