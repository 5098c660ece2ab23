package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/spf13/viper"
)

// categoryFile is the on-disk layout of a category table:
//
//	categories:
//	  assalto: {label: Assalto, color: "#ef4444", severity: high}
type categoryFile struct {
	Categories map[string]domain.CategoryInfo `mapstructure:"categories"`
}

// LoadCategories returns the category table for the service. An empty path
// selects the built-in table. The file format follows its extension (yaml,
// yml or json).
func LoadCategories(path string) (domain.CategoryTable, error) {
	if path == "" {
		return domain.DefaultCategories(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(configType(path))

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("read CATEGORIES_FILE %s: %w", path, err)
		}
		return nil, fmt.Errorf("parse CATEGORIES_FILE %s: %w", path, err)
	}

	var file categoryFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode CATEGORIES_FILE %s: %w", path, err)
	}

	table := make(domain.CategoryTable, len(file.Categories))
	for id, info := range file.Categories {
		info.Severity = domain.Severity(strings.ToLower(string(info.Severity)))
		table[domain.Category(strings.ToLower(id))] = info
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("validate CATEGORIES_FILE %s: %w", path, err)
	}
	return table, nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}
