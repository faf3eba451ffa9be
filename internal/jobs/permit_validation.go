// internal/jobs/permit_validation.go
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rentalregistry/strr-backend/internal/services"
)

// RunPermitValidation loads a permit feed file (JSON array of records) and
// runs it through the validation worker pool. The report lands in S3 and a
// completion message goes to the batch topic.
func (r *Runner) RunPermitValidation(ctx context.Context, inputPath string) error {
	if inputPath == "" {
		return fmt.Errorf("permit validation requires an input file")
	}

	content, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read permit feed: %w", err)
	}

	var records []services.PermitRecord
	if err := json.Unmarshal(content, &records); err != nil {
		return fmt.Errorf("failed to parse permit feed: %w", err)
	}

	source := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	results, err := r.permitValidationService.RunValidation(ctx, source, records)
	if err != nil {
		return err
	}

	valid := 0
	for _, result := range results {
		if result.Valid {
			valid++
		}
	}
	logrus.WithFields(logrus.Fields{
		"source":  source,
		"total":   len(results),
		"valid":   valid,
		"invalid": len(results) - valid,
	}).Info("Permit validation complete")

	return nil
}
