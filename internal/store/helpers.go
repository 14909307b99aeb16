package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mindmirror/mindmirror/internal/models"
)

// DetectDSNType reports which backend a DSN selects: "postgres" for
// Postgres URLs or key=value connection strings, "sqlite" for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// marshalReflectionFields serializes the slice fields of a reflection to JSON
// strings for storage. Nil slices are stored as empty arrays so reads never
// see SQL NULLs.
func marshalReflectionFields(r models.Reflection) (factors, categories, roots string, err error) {
	fs := r.Factors
	if fs == nil {
		fs = []models.EnrichedFactor{}
	}
	data, err := json.Marshal(fs)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal factors: %w", err)
	}
	factors = string(data)
	categories, err = marshalStringSlice(r.Categories)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal categories: %w", err)
	}
	roots, err = marshalStringSlice(r.Roots)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal roots: %w", err)
	}
	return factors, categories, roots, nil
}

func marshalStringSlice(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
