package api

import (
	"fmt"
	"time"

	"github.com/irasus-technologies/grafana-datasource-kit/internal/models"
)

// ValidateRange rejects ranges that end before they start.
func ValidateRange(ds models.Datasource, url string, from, to time.Time) error {
	if from.After(to) {
		return &Error{
			Kind: KindInvalidRange,
			Message: fmt.Sprintf("from %s must not be after to %s",
				from.Format(time.RFC3339), to.Format(time.RFC3339)),
			DatasourceType: ds.Type,
			DatasourceURL:  url,
		}
	}
	return nil
}
