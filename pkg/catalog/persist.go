package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/geeqodb/geeqodb/pkg/index"
	"github.com/geeqodb/geeqodb/pkg/types"
)

// persistedTable and persistedIndex are the JSON shape of catalog.json.
// This file is the authoritative record of table schemas and index
// descriptors; it is rewritten after every schema change and after
// crash recovery so that schemas survive a restart even though the
// physical row data lives in separate heap segment files.
type persistedTable struct {
	Name    string         `json:"name"`
	Columns []types.Column `json:"columns"`
}

type persistedIndex struct {
	Name   string      `json:"name"`
	Table  string      `json:"table"`
	Column string      `json:"column"`
	Shape  index.Shape `json:"shape"`
	Unique bool        `json:"unique"`
}

type catalogImage struct {
	Tables  []persistedTable `json:"tables"`
	Indexes []persistedIndex `json:"indexes"`
}

func catalogJSONPath(dataDir string) string {
	return filepath.Join(dataDir, "catalog.json")
}

func loadCatalogImage(dataDir string) (catalogImage, error) {
	path := catalogJSONPath(dataDir)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return catalogImage{}, nil
	}
	if err != nil {
		return catalogImage{}, err
	}
	var img catalogImage
	if err := json.Unmarshal(data, &img); err != nil {
		return catalogImage{}, err
	}
	return img, nil
}

func saveCatalogImage(dataDir string, img catalogImage) error {
	data, err := json.MarshalIndent(img, "", "  ")
	if err != nil {
		return err
	}
	tmp := catalogJSONPath(dataDir) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, catalogJSONPath(dataDir))
}
